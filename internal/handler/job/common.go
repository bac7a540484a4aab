package job

import (
	"time"

	jobmodel "playlet/internal/model/job"
)

// JobInfo 任务信息 DTO
type JobInfo struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Status          string `json:"status"`
	Progress        int    `json:"progress"`
	ProgressMessage string `json:"progress_message,omitempty"`
	ProjectID       string `json:"project_id,omitempty"`
	ResultData      string `json:"result_data,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	IsImported      bool   `json:"is_imported"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toJobInfo(j *jobmodel.Job) JobInfo {
	return JobInfo{
		ID:              j.ID,
		Type:            string(j.Type),
		Status:          string(j.Status),
		Progress:        j.Progress,
		ProgressMessage: j.ProgressMessage,
		ProjectID:       j.ProjectID,
		ResultData:      j.ResultData,
		ErrorMessage:    j.ErrorMessage,
		IsImported:      j.IsImported,
		CreatedAt:       j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       j.UpdatedAt.Format(time.RFC3339),
	}
}

func toJobInfoList(jobs []*jobmodel.Job) []JobInfo {
	result := make([]JobInfo, len(jobs))
	for i, j := range jobs {
		result[i] = toJobInfo(j)
	}
	return result
}
