package news

// ChatStage 单次问答请求所处的阶段
type ChatStage string

const (
	StageReceived          ChatStage = "RECEIVED"
	StageEmbeddingQuery    ChatStage = "EMBEDDING_QUERY"
	StageRetrievingContext ChatStage = "RETRIEVING_CONTEXT"
	StageLoadingHistory    ChatStage = "LOADING_HISTORY"
	StageGeneratingAnswer  ChatStage = "GENERATING_ANSWER"
	StagePersistingHistory ChatStage = "PERSISTING_HISTORY"
	StageResponded         ChatStage = "RESPONDED"
	StageFailed            ChatStage = "FAILED"
)

// Terminal 是否为终止状态
func (s ChatStage) Terminal() bool {
	return s == StageResponded || s == StageFailed
}
