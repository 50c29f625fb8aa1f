package main

import (
    "errors"
    "fmt"
    "io"
    "os"
    "time"

    "github.com/google/uuid"
    "github.com/sirupsen/logrus"

    "measure_worker/estimator"
)

var errRequestNotFound = errors.New("estimate request not found")

func processEstimateRequest(s *store, cfg estimator.Config, requestID int64) error {
    log := logger.WithFields(logrus.Fields{
        "estimate_request_id": requestID,
        "job_id":              uuid.NewString(),
    })

    exists, err := s.existsEstimateRequest(requestID)
    if err != nil {
        jobsTotal.WithLabelValues("error").Inc()
        return err
    }
    if !exists {
        jobsTotal.WithLabelValues("not_found").Inc()
        return fmt.Errorf("estimate_requests id %d: %w", requestID, errRequestNotFound)
    }
    req, err := s.fetchEstimateRequest(requestID)
    if err != nil {
        jobsTotal.WithLabelValues("error").Inc()
        return fmt.Errorf("fetch estimate request failed: %w", err)
    }
    if err := validateProfile(req.Request.Profile); err != nil {
        jobsTotal.WithLabelValues("invalid").Inc()
        return fmt.Errorf("estimate request %d: %w", requestID, err)
    }
    dataset, err := s.fetchReferenceRecords(referencePageSize())
    if err != nil {
        jobsTotal.WithLabelValues("error").Inc()
        return fmt.Errorf("fetch reference records failed: %w", err)
    }

    var (
        env     *estimator.Envelope
        body    map[estimator.Field]float64
        garment estimator.Garment
    )
    usage, err := measurePeakResidentMemory(func() error {
        var err error
        env, err = estimator.Estimate(dataset, req.Request, cfg)
        if err != nil {
            return err
        }
        body = estimator.Refine(env.Estimate, req.Request.Profile, req.Refinement)
        garment = estimator.GarmentTarget(body, req.Refinement.Fit)
        return nil
    })
    if err != nil {
        var empty *estimator.EmptyDatasetError
        if errors.As(err, &empty) {
            jobsTotal.WithLabelValues("invalid").Inc()
        } else {
            jobsTotal.WithLabelValues("error").Inc()
        }
        return fmt.Errorf("estimation failed: %w", err)
    }

    runID, err := s.insertEstimateResult(requestID, estimateResult{
        Envelope:    env,
        Fields:      cfg.Fields,
        Body:        body,
        Garment:     garment,
        Duration:    usage.Seconds,
        MemoryBytes: usage.PeakRSS,
    })
    if err != nil {
        jobsTotal.WithLabelValues("error").Inc()
        return fmt.Errorf("insert estimate result failed: %w", err)
    }

    jobsTotal.WithLabelValues("ok").Inc()
    estimationDuration.Observe(usage.Seconds)
    subsetSize.Observe(float64(env.Meta.SubsetSize))
    if env.Meta.FellBack {
        datasetFallbacks.Inc()
    }
    log.WithFields(logrus.Fields{
        "estimate_run_id": runID,
        "subset_size":     env.Meta.SubsetSize,
        "widenings":       env.Meta.Widenings,
        "fell_back":       env.Meta.FellBack,
        "duration_s":      usage.Seconds,
        "peak_rss_bytes":  usage.PeakRSS,
    }).Info("processed estimate request")
    return nil
}

// handlePayload decodes one queue entry and processes it. Jobs for other
// worker classes are skipped without error.
func handlePayload(s *store, cfg estimator.Config, payload string) error {
    job, err := decodeJob(payload)
    if err != nil {
        return err
    }
    if !estimateJobClasses[job.Class] {
        logger.WithField("class", job.Class).Debug("skipping job")
        return nil
    }
    id, err := requestIDFromJob(job)
    if err != nil {
        return fmt.Errorf("job %s: %w", job.JID, err)
    }
    if id <= 0 {
        return fmt.Errorf("job %s: invalid estimate_request_id %d", job.JID, id)
    }
    return processEstimateRequest(s, cfg, id)
}

func workerQueue() string {
    qname := os.Getenv("WORKER_QUEUE")
    if qname == "" {
        qname = "default"
    }
    return "queue:" + qname
}

func runService(s *store, cfg estimator.Config) error {
    rcfg, err := parseRedisURL(os.Getenv("REDIS_URL"))
    if err != nil {
        return err
    }
    queue := workerQueue()
    log := logger.WithFields(logrus.Fields{"redis": rcfg.Addr, "queue": queue})
    log.Info("waiting for jobs")

    for {
        conn, err := dialRedis(rcfg)
        if err != nil {
            log.WithError(err).Warn("redis connect failed; retrying in 2s")
            time.Sleep(2 * time.Second)
            continue
        }

        for {
            _, payload, err := conn.brpop(queue, 5)
            if err != nil {
                if !errors.Is(err, io.EOF) {
                    log.WithError(err).Error("redis read error")
                }
                break
            }
            if payload == "" {
                continue // timeout
            }
            if err := handlePayload(s, cfg, payload); err != nil {
                log.WithError(err).Error("process error")
            }
        }
        conn.Close()
        time.Sleep(1 * time.Second)
    }
}
