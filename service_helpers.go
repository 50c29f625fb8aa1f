package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// estimateJobClasses are the Sidekiq worker classes this process consumes.
var estimateJobClasses = map[string]bool{
	"EstimateWorker":         true,
	"MeasurementEstimateJob": true,
}

type sidekiqJob struct {
	Class string            `json:"class"`
	Args  []json.RawMessage `json:"args"`
	Queue string            `json:"queue"`
	JID   string            `json:"jid"`
}

// parseInt64 extracts an int64 from a Sidekiq payload argument that may be encoded
// either as a JSON number or as a quoted string.
func parseInt64(raw json.RawMessage) (int64, error) {
	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return 0, fmt.Errorf("empty string")
		}
		v, err := strconv.ParseInt(asString, 10, 64)
		if err != nil {
			return 0, err
		}
		return v, nil
	}

	return 0, fmt.Errorf("unsupported arg: %s", string(raw))
}

// requestIDFromJob reads the estimate request id from the first job
// argument: a bare id or an object with an estimate_request_id key.
func requestIDFromJob(job sidekiqJob) (int64, error) {
	if len(job.Args) == 0 {
		return 0, errors.New("job has no arguments")
	}
	var obj struct {
		EstimateRequestID json.RawMessage `json:"estimate_request_id"`
	}
	if err := json.Unmarshal(job.Args[0], &obj); err == nil {
		if obj.EstimateRequestID == nil {
			return 0, errors.New("estimate_request_id missing from job argument")
		}
		return parseInt64(obj.EstimateRequestID)
	}
	return parseInt64(job.Args[0])
}

func decodeJob(payload string) (sidekiqJob, error) {
	var job sidekiqJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return sidekiqJob{}, fmt.Errorf("invalid job json: %w", err)
	}
	return job, nil
}
