package ledgerarchive

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/hotspotvend/HotspotVend/app/repository"
)

const (
	// markerKey is the settings row tracking the most recent fully archived day.
	markerKey = "ledger_last_archived_day"

	dayFormat = "2006-01-02"

	// maxCatchUpDays bounds how many missed days one tick may backfill after
	// an outage, so a stale marker cannot trigger an unbounded export.
	maxCatchUpDays = 30
)

// Archiver exports each finished day's completed payments as a CSV object in
// S3-compatible storage. Days are archived at most once, tracked through a
// marker in the settings table.
type Archiver struct {
	s3Client *s3.Client
	config   *Config
	payments repository.PaymentRepository
	settings repository.SettingRepository
	now      func() time.Time
}

// NewArchiver creates a new ledger archiver and verifies the bucket is
// reachable.
func NewArchiver(cfg *Config, payments repository.PaymentRepository, settings repository.SettingRepository) (*Archiver, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("ledger archive is disabled")
	}

	// Create AWS config
	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client
	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services (MinIO, B2) need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	archiver := &Archiver{
		s3Client: s3Client,
		config:   cfg,
		payments: payments,
		settings: settings,
		now:      time.Now,
	}

	// Test connection
	if err := archiver.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[LedgerArchive] Successfully initialized S3 client for bucket: %s", cfg.GetBucketName())
	return archiver, nil
}

// SetClock replaces the time source. Tests use this to pin "yesterday".
func (a *Archiver) SetClock(now func() time.Time) {
	a.now = now
}

// testConnection tests the S3 connection by checking if the bucket exists
func (a *Archiver) testConnection() error {
	ctx := context.Background()
	bucketName := a.config.GetBucketName()

	_, err := a.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucketName),
	})

	if err != nil {
		// If bucket doesn't exist, try to create it (for development)
		if GetAppEnv() != "prod" {
			log.Warnf("[LedgerArchive] Bucket %s not found, attempting to create it", bucketName)
			return a.createBucket(bucketName)
		}
		return fmt.Errorf("bucket %s not accessible: %w", bucketName, err)
	}

	return nil
}

// createBucket creates a new S3 bucket (dev/staging only)
func (a *Archiver) createBucket(bucketName string) error {
	ctx := context.Background()

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}

	// For AWS regions other than us-east-1 we need to specify the location
	// constraint; S3-compatible services reject it.
	if a.config.EndpointURL == "" && a.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(a.config.Region),
		}
	}

	_, err := a.s3Client.CreateBucket(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}

	log.Infof("[LedgerArchive] Successfully created bucket: %s", bucketName)
	return nil
}

// ArchiveDue uploads every finished day that has not been archived yet,
// oldest first. Days are only marked archived after their upload succeeds,
// so a failed upload is retried on the next tick.
func (a *Archiver) ArchiveDue(ctx context.Context) error {
	yesterday := a.now().UTC().AddDate(0, 0, -1).Format(dayFormat)

	last, err := a.settings.GetValue(markerKey)
	if err != nil {
		return fmt.Errorf("failed to read archive marker: %w", err)
	}

	for _, day := range daysToArchive(last, yesterday) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := a.ArchiveDay(ctx, day); err != nil {
			return err
		}
		if err := a.settings.SetValue(markerKey, day); err != nil {
			return fmt.Errorf("failed to advance archive marker: %w", err)
		}
	}
	return nil
}

// ArchiveDay exports one day's completed payments and uploads them. Empty
// days still produce a header-only object so the bucket alone answers
// whether a day was archived.
func (a *Archiver) ArchiveDay(ctx context.Context, day string) error {
	start, end, err := dayBounds(day)
	if err != nil {
		return err
	}

	rows, err := a.payments.ListCompletedBetween(start, end)
	if err != nil {
		return fmt.Errorf("failed to list completed payments for %s: %w", day, err)
	}

	body := exportCSV(rows)
	objectKey := a.config.GetObjectKey(start)

	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.config.GetBucketName()),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("text/csv"),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]string{
			"ledger-day":    day,
			"upload-source": "hotspotvend-ledger",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload ledger for %s: %w", day, err)
	}

	log.Infof("[LedgerArchive] Uploaded s3://%s/%s (%d payment(s), %d bytes)",
		a.config.GetBucketName(), objectKey, len(rows), len(body))
	return nil
}

// daysToArchive returns the days after lastArchived up to and including
// yesterday, oldest first, capped at maxCatchUpDays. A missing or broken
// marker starts fresh from yesterday instead of trawling all history.
func daysToArchive(lastArchived, yesterday string) []string {
	end, err := time.ParseInLocation(dayFormat, yesterday, time.UTC)
	if err != nil {
		return nil
	}

	last, err := time.ParseInLocation(dayFormat, lastArchived, time.UTC)
	if lastArchived == "" || err != nil {
		return []string{yesterday}
	}

	var days []string
	for d := last.AddDate(0, 0, 1); !d.After(end) && len(days) < maxCatchUpDays; d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dayFormat))
	}
	return days
}

// dayBounds returns the [midnight, next midnight) UTC window for a day.
func dayBounds(day string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dayFormat, day, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid ledger day %q: %w", day, err)
	}
	return start, start.AddDate(0, 0, 1), nil
}

// exportCSV renders completed payments as a CSV document with a header row.
func exportCSV(payments []models.Payment) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"uuid", "created_at", "device_id", "plan_code", "method", "amount_cents", "currency", "provider_ref"})
	for _, p := range payments {
		w.Write([]string{
			p.UUID,
			p.CreatedAt.UTC().Format(time.RFC3339),
			p.DeviceID,
			p.PlanCode,
			p.Method,
			strconv.FormatInt(p.AmountCents, 10),
			p.Currency,
			p.ProviderRef,
		})
	}
	w.Flush()

	return buf.Bytes()
}
