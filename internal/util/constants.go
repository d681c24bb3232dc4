package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 文件上传相关常量
const (
	MimePDF         = "application/pdf"
	MimePPT         = "application/vnd.ms-powerpoint"
	MimePPTX        = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeOctetStream = "application/octet-stream"
)

var (
	AllowedDeckExtensions      = []string{".pdf", ".ppt", ".pptx"}
	AllowedRecordingExtensions = []string{".mp4", ".mov", ".mkv", ".webm"}
)
