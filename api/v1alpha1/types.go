package v1alpha1

// DataCategory classifies an uploaded file in the project data library.
type DataCategory string

const (
	DataCategoryDataset   DataCategory = "DATASET"
	DataCategoryKnowledge DataCategory = "KNOWLEDGE"
)

// FileType describes how the service should parse an uploaded file.
type FileType string

const (
	FileTypeDocument   FileType = "document"
	FileTypeStructured FileType = "structured"
)

// ProcessingProfile selects the ingestion pipeline for an upload.
type ProcessingProfile string

const (
	ProcessingProfileAuto     ProcessingProfile = "auto"
	ProcessingProfileDataset  ProcessingProfile = "dataset"
	ProcessingProfileDocument ProcessingProfile = "document"
)

// ProcessingStatus is the server side ingestion state of a data record.
type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "pending"
	ProcessingStatusQueued     ProcessingStatus = "queued"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

// EvaluationStatus is the lifecycle state of an evaluation job.
type EvaluationStatus string

const (
	EvaluationStatusQueued    EvaluationStatus = "queued"
	EvaluationStatusRunning   EvaluationStatus = "running"
	EvaluationStatusCompleted EvaluationStatus = "completed"
	EvaluationStatusPartial   EvaluationStatus = "partial"
	EvaluationStatusFailed    EvaluationStatus = "failed"
	EvaluationStatusCancelled EvaluationStatus = "cancelled"
)

// IsTerminal reports whether the job reached a final state and polling
// should stop.
func (s EvaluationStatus) IsTerminal() bool {
	switch s {
	case EvaluationStatusCompleted, EvaluationStatusPartial, EvaluationStatusFailed, EvaluationStatusCancelled:
		return true
	default:
		return false
	}
}

// GateStatus is the verdict of a single release gate.
type GateStatus string

const (
	GateStatusPass    GateStatus = "pass"
	GateStatusWarn    GateStatus = "warn"
	GateStatusFail    GateStatus = "fail"
	GateStatusUnknown GateStatus = "unknown"
)

// CreateDataRequest registers a new file in the project data library and
// requests a signed upload target.
type CreateDataRequest struct {
	Filename          string            `json:"filename"`
	FileType          FileType          `json:"file_type"`
	MimeType          string            `json:"mime_type"`
	FileSize          int64             `json:"file_size"`
	DataCategory      DataCategory      `json:"data_category"`
	ProcessingProfile ProcessingProfile `json:"processing_profile"`
}

// DataRef identifies a data record.
type DataRef struct {
	Id string `json:"id"`
}

// UploadTarget points at the signed URL the file content must be pushed to.
type UploadTarget struct {
	UploadUrl string            `json:"upload_url"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// CreateDataResponse is returned by the data create endpoint.
type CreateDataResponse struct {
	Data   DataRef      `json:"data"`
	Upload UploadTarget `json:"upload"`
}

// ConfirmDataRequest finalizes an upload after the content was pushed to
// the signed URL.
type ConfirmDataRequest struct {
	FileSize    int64  `json:"file_size"`
	MimeType    string `json:"mime_type"`
	ContentHash string `json:"content_hash"`
}

// DataStatusResponse carries the processing state reported after a
// confirm or reprocess call.
type DataStatusResponse struct {
	ProcessingStatus ProcessingStatus `json:"processing_status,omitempty"`
}

// DataRecord is a single entry of the project data library.
type DataRecord struct {
	Id               string           `json:"id"`
	Filename         string           `json:"filename,omitempty"`
	DataCategory     DataCategory     `json:"data_category,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status,omitempty"`
	FileSize         int64            `json:"file_size,omitempty"`
	MimeType         string           `json:"mime_type,omitempty"`
	ContentHash      string           `json:"content_hash,omitempty"`
	ProcessingError  string           `json:"processing_error,omitempty"`
	ExtractedSummary string           `json:"extracted_summary,omitempty"`
	CreatedAt        string           `json:"created_at,omitempty"`
}

// DataList is the envelope of the data listing endpoint.
type DataList struct {
	Items []DataRecord `json:"items"`
}

// BindingMeta carries the role of a data binding and, for validation
// bindings, the Ground Truth extraction parameters.
type BindingMeta struct {
	Role         string `json:"role"`
	SamplingSeed *int   `json:"sampling_seed,omitempty"`
	Split        string `json:"split,omitempty"`
	LabelColumn  string `json:"label_column,omitempty"`
	RowFilter    string `json:"row_filter,omitempty"`
}

// BindDataRequest attaches a data record to a scenario.
type BindDataRequest struct {
	DataId      string       `json:"data_id"`
	BindingMeta *BindingMeta `json:"binding_meta,omitempty"`
}

// MaterializeRequest builds the Ground Truth profile and contracts for a
// validation binding.
type MaterializeRequest struct {
	DataId       string `json:"data_id"`
	SamplingSeed int    `json:"sampling_seed"`
	Split        string `json:"split,omitempty"`
	LabelColumn  string `json:"label_column,omitempty"`
	RowFilter    string `json:"row_filter,omitempty"`
}

// ReprocessDataRequest re-runs ingestion for an existing data record,
// optionally forcing a category.
type ReprocessDataRequest struct {
	DataCategory      DataCategory      `json:"data_category,omitempty"`
	ProcessingProfile ProcessingProfile `json:"processing_profile,omitempty"`
}

// EvaluationRequest triggers an evaluation job for an experiment.
type EvaluationRequest struct {
	ProjectId    string   `json:"project_id"`
	ExperimentId string   `json:"experiment_id"`
	ConfigId     string   `json:"config_id,omitempty"`
	RunIds       []string `json:"run_ids,omitempty"`
	ForceRerun   bool     `json:"force_rerun"`
	Source       string   `json:"source"`
}

// EvaluationTriggered is the trigger endpoint response.
type EvaluationTriggered struct {
	EvaluationId string           `json:"evaluation_id,omitempty"`
	Status       EvaluationStatus `json:"status,omitempty"`
}

// EvaluationProgress counts processed runs of an evaluation job. Total is
// absent while the server has not sized the job yet.
type EvaluationProgress struct {
	Total     *int `json:"total,omitempty"`
	Completed int  `json:"completed,omitempty"`
	Failed    int  `json:"failed,omitempty"`
}

// EvaluationJob is a single entry of the experiment evaluation listing.
type EvaluationJob struct {
	Id        string              `json:"id"`
	Status    EvaluationStatus    `json:"status,omitempty"`
	Progress  *EvaluationProgress `json:"progress,omitempty"`
	CreatedAt string              `json:"created_at,omitempty"`
	LockedAt  string              `json:"locked_at,omitempty"`
}

// InsightSummary is the headline block of an experiment insight.
type InsightSummary struct {
	Headline string `json:"headline,omitempty"`
}

// InsightContent wraps the summary of an experiment insight.
type InsightContent struct {
	Summary InsightSummary `json:"summary,omitempty"`
}

// ExperimentInsight is one entry of the insights or recommendations
// listing.
type ExperimentInsight struct {
	Content InsightContent `json:"content,omitempty"`
}

// ProjectSettings holds project wide defaults.
type ProjectSettings struct {
	DefaultLanguage string `json:"default_language,omitempty"`
}

// Project is a FluxLoop web project.
type Project struct {
	Id          string           `json:"id"`
	Name        string           `json:"name,omitempty"`
	Description string           `json:"description,omitempty"`
	Settings    *ProjectSettings `json:"settings,omitempty"`
	CreatedAt   string           `json:"created_at,omitempty"`
}

// CreateProjectRequest creates a new web project.
type CreateProjectRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	WorkspaceId string           `json:"workspace_id,omitempty"`
	Settings    *ProjectSettings `json:"settings,omitempty"`
}

// Workspace is the top level grouping projects belong to.
type Workspace struct {
	Id   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Scenario is a FluxLoop test scenario.
type Scenario struct {
	Id          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// ServiceInfo reports build details of the remote service.
type ServiceInfo struct {
	GitCommit   string `json:"gitCommit,omitempty"`
	VersionName string `json:"versionName,omitempty"`
}
