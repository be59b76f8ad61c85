package interfaces

// Metadata key constants used in deployment log entries
const (
	MetadataKeyPreviousStatus = "previous_status"
	MetadataKeyNewStatus      = "new_status"
	MetadataKeyOverallStatus  = "overall_status"
	MetadataKeyURL            = "url"
	MetadataKeyResponseTime   = "response_time_ms"
	MetadataKeyRequestID      = "request_id"
	MetadataKeyFields         = "fields"
)
