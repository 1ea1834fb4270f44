package gcs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	monitoring "cloud.google.com/go/monitoring/apiv3/v2"
	monitoringpb "cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"cumulus/pkg/storage"
)

const metricTimeWindow = 72 * time.Hour

const (
	totalBytesMetric  = "storage.googleapis.com/storage/v2/total_bytes"
	objectCountMetric = "storage.googleapis.com/storage/v2/object_count"
)

// ErrMetricsNotFound indicates that the usage metrics could not be found within the queried time range
// This often happens for new buckets that haven't reported metrics yet
var ErrMetricsNotFound = errors.New("usage metrics not found in the monitoring window")

// BucketUsage reads aggregate bucket metrics from the Monitoring API. A
// metric that is unavailable degrades to -1 rather than failing the call.
func (g *Boundary) BucketUsage(ctx context.Context, in *storage.BucketUsageInput) (*storage.BucketUsageOutput, error) {
	bucket := g.bucketFor(in.Scope)

	totalBytes, err := g.bucketMetric(ctx, totalBytesMetric, bucket)
	if err != nil {
		g.logUsageFailure(ctx, bucket, err)
		totalBytes = -1
	}
	objectCount, err := g.bucketMetric(ctx, objectCountMetric, bucket)
	if err != nil {
		g.logUsageFailure(ctx, bucket, err)
		objectCount = -1
	}
	return &storage.BucketUsageOutput{TotalBytes: totalBytes, ObjectCount: objectCount}, nil
}

func (g *Boundary) logUsageFailure(ctx context.Context, bucket string, err error) {
	if errors.Is(err, ErrMetricsNotFound) {
		g.logger.Info("Usage metrics not yet available (bucket may be new), usage will be reported as N/A", "bucket", bucket, "error", err)
		return
	}
	g.logger.Warn("Failed to retrieve usage metrics due to API error, usage will be reported as N/A", "bucket", bucket, "error", err)
}

func (g *Boundary) bucketMetric(ctx context.Context, metricType, bucketName string) (int64, error) {
	g.logger.Debug("Fetching GCS bucket usage metric via Monitoring API (Aggregated)", "metric", metricType, "bucket", bucketName)
	client, err := monitoring.NewMetricClient(ctx)
	if err != nil {
		return -1, fmt.Errorf("failed to create monitoring client: %w", err)
	}
	defer client.Close()

	endTime := time.Now()
	startTime := endTime.Add(-metricTimeWindow)

	req := &monitoringpb.ListTimeSeriesRequest{
		Name:   fmt.Sprintf("projects/%s", g.opts.Project),
		Filter: fmt.Sprintf(`metric.type="%s" AND resource.labels.bucket_name="%s"`, metricType, bucketName),
		Interval: &monitoringpb.TimeInterval{
			StartTime: timestamppb.New(startTime),
			EndTime:   timestamppb.New(endTime),
		},
		Aggregation: &monitoringpb.Aggregation{
			AlignmentPeriod:    durationpb.New(metricTimeWindow),
			PerSeriesAligner:   monitoringpb.Aggregation_ALIGN_MEAN,
			CrossSeriesReducer: monitoringpb.Aggregation_REDUCE_SUM,
			GroupByFields:      []string{"resource.labels.bucket_name"},
		},
	}

	it := client.ListTimeSeries(ctx, req)

	// Everything is aggregated into a single point and summed across series,
	// so we expect exactly one time series in the response
	resp, err := it.Next()
	if err == iterator.Done {
		return -1, ErrMetricsNotFound
	}
	if err != nil {
		return -1, fmt.Errorf("error getting metric data for bucket %s: %w", bucketName, err)
	}

	if len(resp.GetPoints()) > 0 {
		pointValue := resp.GetPoints()[0].GetValue()
		return extractUsageValue(pointValue), nil
	}

	return -1, ErrMetricsNotFound
}

func extractUsageValue(pointValue *monitoringpb.TypedValue) int64 {
	if pointValue == nil {
		return 0
	}

	switch v := pointValue.Value.(type) {
	case *monitoringpb.TypedValue_DoubleValue:
		return int64(math.Round(v.DoubleValue))
	case *monitoringpb.TypedValue_Int64Value:
		return v.Int64Value
	default:
		return 0
	}
}
