// Package report renders patient records for export.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"cliniq/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var PatientColumns = []string{"id", "name", "phone", "dept", "token", "score", "arrival", "status", "service_start", "service_end"}

type VisitLister interface {
	ListVisits(ctx context.Context) ([]models.Visit, error)
}

// S3Client is the subset of *s3.Client used for uploads.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// WritePatientsCSV writes the header and one row per visit, ordered as given.
func WritePatientsCSV(w io.Writer, visits []models.Visit) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(PatientColumns); err != nil {
		return err
	}
	for _, v := range visits {
		if err := writer.Write([]string{
			strconv.FormatInt(v.ID, 10),
			v.Name,
			v.Phone,
			v.Dept,
			v.Token,
			strconv.Itoa(v.Score),
			v.Arrival.UTC().Format(time.RFC3339),
			v.Status,
			formatTime(v.ServiceStart),
			formatTime(v.ServiceEnd),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

type Exporter struct {
	store VisitLister
}

func NewExporter(store VisitLister) *Exporter {
	return &Exporter{store: store}
}

// Export writes every patient record as CSV and returns the row count.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (int, error) {
	visits, err := e.store.ListVisits(ctx)
	if err != nil {
		return 0, fmt.Errorf("report: list visits: %w", err)
	}
	if err := WritePatientsCSV(w, visits); err != nil {
		return 0, fmt.Errorf("report: write csv: %w", err)
	}
	return len(visits), nil
}

// Upload exports to an in-memory buffer and stores it at bucket/key.
func (e *Exporter) Upload(ctx context.Context, client S3Client, bucket, key string) (int, error) {
	var buf bytes.Buffer
	rows, err := e.Export(ctx, &buf)
	if err != nil {
		return 0, err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
		Metadata: map[string]string{
			"row_count": strconv.Itoa(rows),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("report: s3 upload failed: %w", err)
	}
	return rows, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
