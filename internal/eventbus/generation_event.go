package eventbus

import "time"

type GenerationEventType string

const (
	GenerationEventStarted   GenerationEventType = "Started"
	GenerationEventCompleted GenerationEventType = "Completed"
	GenerationEventFailed    GenerationEventType = "Failed"
)

// GenerationEvent 文档生成生命周期事件，只携带元数据
type GenerationEvent struct {
	Type             GenerationEventType
	RequestID        string
	DocumentKey      string
	DocumentName     string
	DeckName         string
	SlideCount       int
	ExtractedChars   int
	SentChars        int
	Truncated        bool
	ResponseFormat   string
	AnchorStrategy   string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ErrorKind        string
	ErrorMsg         string
	Duration         time.Duration
}

type GenerationEventHandler = Handler[GenerationEvent]
type GenerationEventBus = Bus[GenerationEventType, GenerationEvent]

func NewGenerationEventBus() *GenerationEventBus {
	return NewBus[GenerationEventType, GenerationEvent]()
}
