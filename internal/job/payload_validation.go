package job

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joshu-sajeev/brokerjobs/common"
	"github.com/joshu-sajeev/brokerjobs/internal/config"
)

// MaxUploadBytes bounds a single uploaded document.
const MaxUploadBytes = 25 << 20

var allowedUploadTypes = []string{".pdf", ".csv", ".xlsx", ".xlsm"}

var rosterFileTypes = []string{".csv", ".xlsx", ".xlsm", ".pdf"}

var knownStatuses = []config.JobStatus{
	config.JobStatusPending,
	config.JobStatusClaimed,
	config.JobStatusExtracting,
	config.JobStatusAnalyzing,
	config.JobStatusNotifying,
	config.JobStatusParsing,
	config.JobStatusMatching,
	config.JobStatusAwaitingApproval,
	config.JobStatusApplying,
	config.JobStatusComplete,
	config.JobStatusError,
}

func validateUpload(filename string, size int) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(allowedUploadTypes, ext) {
		return common.NewAPIError(http.StatusBadRequest, "unsupported file type", map[string]any{
			"provided": ext,
			"allowed":  allowedUploadTypes,
		})
	}
	if size == 0 {
		return common.Errf(http.StatusBadRequest, "file is empty")
	}
	if size > MaxUploadBytes {
		return common.Errf(http.StatusRequestEntityTooLarge, "file exceeds %d MB", MaxUploadBytes>>20)
	}
	return nil
}

func validateRosterFile(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(rosterFileTypes, ext) {
		return common.NewAPIError(http.StatusBadRequest, "unsupported roster file type", map[string]any{
			"provided": ext,
			"allowed":  rosterFileTypes,
		})
	}
	return nil
}

func validateFilters(kind, status string) error {
	if kind != "" && !config.IsKnownKind(config.JobKind(kind)) {
		return common.NewAPIError(http.StatusBadRequest, "invalid job kind", map[string]any{
			"provided": kind,
			"allowed":  config.AllowedJobKinds,
		})
	}
	if status != "" && !slices.Contains(knownStatuses, config.JobStatus(status)) {
		return common.NewAPIError(http.StatusBadRequest, "invalid job status", map[string]any{
			"provided": status,
			"allowed":  knownStatuses,
		})
	}
	return nil
}

func encodePayload(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, common.Errf(http.StatusInternalServerError, "failed to encode job payload")
	}
	return raw, nil
}
