// Package embed 内置单页界面：上传幻灯片、选择文档类型、调整截断预算并下载生成的文档
package embed

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

//go:embed ui/dist
var embeddedFiles embed.FS

// FS 返回 ui/dist 目录
func FS() fs.FS {
	dist, err := fs.Sub(embeddedFiles, "ui/dist")
	if err != nil {
		// ui/dist 由 go:embed 保证存在
		panic(err)
	}
	return dist
}

// SetupRouter 注册静态资源与页面路由，需在 API 路由之后调用
func SetupRouter(r *gin.Engine) {
	dist := FS()
	static := r.Group("/", gzip.Gzip(gzip.BestCompression))

	if assets, err := fs.Sub(dist, "assets"); err == nil {
		fileServer := http.StripPrefix("/assets", http.FileServer(http.FS(assets)))
		static.GET("/assets/*filepath", func(c *gin.Context) {
			c.Header("Cache-Control", "public, max-age=3600")
			fileServer.ServeHTTP(c.Writer, c.Request)
		})
	}

	index, err := fs.ReadFile(dist, "index.html")
	if err != nil {
		klog.Errorf("读取内置页面失败: %v", err)
	}
	page := func(c *gin.Context) {
		if index == nil {
			c.String(http.StatusInternalServerError, "Failed to load index.html")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	}
	static.GET("/", page)

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		page(c)
	})
}
