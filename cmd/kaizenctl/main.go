// kaizenctl 命令行：提取幻灯片文本、生成沟通文档、导出模板
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kaizen-comms/backend/config"
	"github.com/kaizen-comms/backend/internal/domain"
	"github.com/kaizen-comms/backend/internal/pkg/llm"
	"github.com/kaizen-comms/backend/internal/service"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// newGenerator 测试中可替换
var newGenerator = llm.NewGenerator

type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "kaizenctl",
		Short:         "Turn Kaizen report-out decks into communication documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $CONFIG_PATH or config.yaml)")

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	root.AddCommand(
		newExtractCmd(opts),
		newGenerateCmd(opts),
		newTemplateCmd(opts),
		newCatalogCmd(opts),
	)
	return root
}

func main() {
	defer klog.Flush()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		klog.Flush()
		os.Exit(1)
	}
}

// load 读取配置；path 为空时依次使用 CONFIG_PATH 与 config.yaml
func (o *options) load() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	return config.Load(path)
}

// newService 组装生成服务；CLI 不写运行记录
func (o *options) newService(withGenerator bool) (*service.GenerationService, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	catalog, err := domain.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	var generator llm.Generator
	if withGenerator {
		if generator, err = newGenerator(cfg); err != nil {
			return nil, err
		}
	}
	svc, err := service.NewGenerationService(cfg.Generation, catalog, generator, nil)
	if err != nil {
		return nil, err
	}
	return svc, nil
}
