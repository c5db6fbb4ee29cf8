package dto

// ProviderCallbackRequest 渲染供应商完成回调
// 字段名遵循供应商侧的驼峰命名
type ProviderCallbackRequest struct {
	RunID       string  `json:"runId"`
	Status      string  `json:"status"`
	ArtifactURL string  `json:"artifactUrl,omitempty"`
	Error       string  `json:"error,omitempty"`
	DurationSec float64 `json:"durationSec,omitempty"`
}

// Succeeded 回调是否表示渲染成功
func (r *ProviderCallbackRequest) Succeeded() bool {
	return r.Status == "succeeded"
}

// CallbackAckResponse 回调确认响应
type CallbackAckResponse struct {
	RunID     string `json:"run_id"`
	State     string `json:"state"`
	Duplicate bool   `json:"duplicate"`
	Message   string `json:"message,omitempty"`
}
