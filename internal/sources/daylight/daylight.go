// Package daylight exports aeroway features of the Daylight OSM
// distribution by querying its public Parquet files with Athena.
package daylight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/aws/aws-sdk-go/service/glue"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// FeaturesLocation holds the Parquet release partitions.
	FeaturesLocation = "s3://daylight-openstreetmap/parquet/osm_features/"

	ReleaseBucket = "daylight-map-distribution"
	ReleaseKey    = "release/latest.txt"

	DefaultTopTags      = 50
	DefaultPollInterval = 5 * time.Second
)

// Aeroways are the values exported by Fetch, in order.
var Aeroways = []string{"runway", "aerodrome"}

// AthenaAPI is the part of the Athena client the runner uses.
type AthenaAPI interface {
	StartQueryExecutionWithContext(aws.Context, *athena.StartQueryExecutionInput, ...request.Option) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecutionWithContext(aws.Context, *athena.GetQueryExecutionInput, ...request.Option) (*athena.GetQueryExecutionOutput, error)
	GetQueryResultsWithContext(aws.Context, *athena.GetQueryResultsInput, ...request.Option) (*athena.GetQueryResultsOutput, error)
}

// GlueAPI is the part of the Glue client the runner uses.
type GlueAPI interface {
	GetDatabaseWithContext(aws.Context, *glue.GetDatabaseInput, ...request.Option) (*glue.GetDatabaseOutput, error)
	CreateDatabaseWithContext(aws.Context, *glue.CreateDatabaseInput, ...request.Option) (*glue.CreateDatabaseOutput, error)
}

// S3API is the part of the S3 client the runner uses.
type S3API interface {
	GetObjectWithContext(aws.Context, *s3.GetObjectInput, ...request.Option) (*s3.GetObjectOutput, error)
}

// Runner submits Athena queries against one Glue database and collects
// their results from the output bucket.
type Runner struct {
	Athena AthenaAPI
	Glue   GlueAPI
	S3     S3API

	Database     string
	Table        string
	OutputBucket string
	PollInterval time.Duration
	Logger       *zap.Logger
}

// NewRunner builds a runner on real AWS clients. The table is named after
// the database.
func NewRunner(sess *session.Session, database, outputBucket string, logger *zap.Logger) *Runner {
	return &Runner{
		Athena:       athena.New(sess),
		Glue:         glue.New(sess),
		S3:           s3.New(sess),
		Database:     database,
		Table:        database,
		OutputBucket: outputBucket,
		PollInterval: DefaultPollInterval,
		Logger:       logger,
	}
}

// EnsureDatabase creates the Glue database when it does not exist.
func (r *Runner) EnsureDatabase(ctx context.Context) error {
	_, err := r.Glue.GetDatabaseWithContext(ctx, &glue.GetDatabaseInput{Name: aws.String(r.Database)})
	if err == nil {
		r.Logger.Info("Database already exists", zap.String("database", r.Database))
		return nil
	}
	var aerr awserr.Error
	if !errors.As(err, &aerr) || aerr.Code() != glue.ErrCodeEntityNotFoundException {
		return errors.Wrapf(err, "failed to look up database %s", r.Database)
	}

	r.Logger.Info("Creating database", zap.String("database", r.Database))
	_, err = r.Glue.CreateDatabaseWithContext(ctx, &glue.CreateDatabaseInput{
		DatabaseInput: &glue.DatabaseInput{
			Name:        aws.String(r.Database),
			Description: aws.String("Database for storing Athena tables related to Daylight OSM"),
		},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create database %s", r.Database)
	}
	return nil
}

// CreateTableQuery declares the external Parquet table of features.
func CreateTableQuery(table string) string {
	return fmt.Sprintf("CREATE EXTERNAL TABLE IF NOT EXISTS %s (\n"+
		"  `id` bigint,\n"+
		"  `version` int,\n"+
		"  `changeset` bigint,\n"+
		"  `created_at` timestamp,\n"+
		"  `tags` map<string,string>,\n"+
		"  `wkt` string,\n"+
		"  `min_lon` double,\n"+
		"  `max_lon` double,\n"+
		"  `min_lat` double,\n"+
		"  `max_lat` double,\n"+
		"  `quadkey` string,\n"+
		"  `linear_meters` double\n"+
		")\n"+
		"PARTITIONED BY (`release` string, `type` string)\n"+
		"ROW FORMAT SERDE 'org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe'\n"+
		"STORED AS INPUTFORMAT 'org.apache.hadoop.hive.ql.io.parquet.MapredParquetInputFormat'\n"+
		"OUTPUTFORMAT 'org.apache.hadoop.hive.ql.io.parquet.MapredParquetOutputFormat'\n"+
		"LOCATION '%s'", table, FeaturesLocation)
}

// CreateTable declares the table and loads its partitions.
func (r *Runner) CreateTable(ctx context.Context) error {
	if _, err := r.Run(ctx, CreateTableQuery(r.Table)); err != nil {
		return errors.Wrap(err, "failed to create table")
	}
	if _, err := r.Run(ctx, "MSCK REPAIR TABLE "+r.Table); err != nil {
		return errors.Wrap(err, "failed to repair table partitions")
	}
	return nil
}

// Run submits query and waits for it to finish. It returns the query
// execution ID.
func (r *Runner) Run(ctx context.Context, query string) (string, error) {
	r.Logger.Debug("Submitting query", zap.String("query", query))
	out, err := r.Athena.StartQueryExecutionWithContext(ctx, &athena.StartQueryExecutionInput{
		QueryString:           aws.String(query),
		QueryExecutionContext: &athena.QueryExecutionContext{Database: aws.String(r.Database)},
		ResultConfiguration:   &athena.ResultConfiguration{OutputLocation: aws.String("s3://" + r.OutputBucket + "/")},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to start query")
	}
	id := aws.StringValue(out.QueryExecutionId)
	return id, r.Wait(ctx, id)
}

// Wait polls the query until it succeeds. FAILED and CANCELLED states are
// returned as errors carrying the state change reason.
func (r *Runner) Wait(ctx context.Context, id string) error {
	interval := r.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for {
		out, err := r.Athena.GetQueryExecutionWithContext(ctx, &athena.GetQueryExecutionInput{QueryExecutionId: aws.String(id)})
		if err != nil {
			return errors.Wrapf(err, "failed to get state of query %s", id)
		}
		var state, reason string
		if out.QueryExecution != nil && out.QueryExecution.Status != nil {
			state = aws.StringValue(out.QueryExecution.Status.State)
			reason = aws.StringValue(out.QueryExecution.Status.StateChangeReason)
		}
		switch state {
		case athena.QueryExecutionStateSucceeded:
			r.Logger.Info("Query completed successfully", zap.String("id", id))
			return nil
		case athena.QueryExecutionStateFailed, athena.QueryExecutionStateCancelled:
			if reason == "" {
				reason = "No specific reason provided."
			}
			return errors.Errorf("query %s %s due to: %s", id, strings.ToLower(state), reason)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Results returns every row of a finished query, header row included.
func (r *Runner) Results(ctx context.Context, id string) ([][]string, error) {
	var rows [][]string
	var token *string
	for {
		out, err := r.Athena.GetQueryResultsWithContext(ctx, &athena.GetQueryResultsInput{
			QueryExecutionId: aws.String(id),
			NextToken:        token,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get results of query %s", id)
		}
		if out.ResultSet != nil {
			for _, row := range out.ResultSet.Rows {
				values := make([]string, len(row.Data))
				for i, d := range row.Data {
					values[i] = aws.StringValue(d.VarCharValue)
				}
				rows = append(rows, values)
			}
		}
		if aws.StringValue(out.NextToken) == "" {
			return rows, nil
		}
		token = out.NextToken
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// TopTagsQuery counts the tag keys of one aeroway value in a release.
func TopTagsQuery(table, aeroway, release string, n int) string {
	return fmt.Sprintf(`SELECT variable, COUNT(*) AS variable_count
FROM (
  SELECT id, t.*
  FROM (
    SELECT id, tags AS m
    FROM %s
    WHERE tags['aeroway'] = %s
    AND release = %s
  ) t1
  CROSS JOIN UNNEST(
    coalesce(map_keys(m), array [ null ]),
    coalesce(map_values(m), array [ null ])
  ) AS t (variable, value)
)
GROUP BY variable
ORDER BY variable_count DESC
LIMIT %d`, table, quote(aeroway), quote(release), n)
}

// TopTags returns the n most used tag keys, most used first.
func (r *Runner) TopTags(ctx context.Context, aeroway, release string, n int) ([]string, error) {
	id, err := r.Run(ctx, TopTagsQuery(r.Table, aeroway, release, n))
	if err != nil {
		return nil, err
	}
	rows, err := r.Results(ctx, id)
	if err != nil {
		return nil, err
	}
	var tags []string
	seen := make(map[string]bool)
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if tag := row[0]; tag != "" && !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

var unsafeColumn = regexp.MustCompile(`[^A-Za-z0-9_]`)

// TagColumn is the output column of a tag key: "disused:aeroway" becomes
// "disused_aeroway".
func TagColumn(tag string) string {
	return unsafeColumn.ReplaceAllString(tag, "_")
}

// ProjectionQuery selects id, the centroid and one column per tag.
func ProjectionQuery(table string, tags []string, aeroway, release string) string {
	cols := []string{
		"id",
		"ST_Y(ST_CENTROID(ST_GEOMETRYFROMTEXT(wkt))) AS latitude",
		"ST_X(ST_CENTROID(ST_GEOMETRYFROMTEXT(wkt))) AS longitude",
	}
	used := map[string]bool{"id": true, "latitude": true, "longitude": true}
	for _, tag := range tags {
		col := TagColumn(tag)
		if used[col] {
			continue
		}
		used[col] = true
		cols = append(cols, fmt.Sprintf(`element_at(tags, %s) AS "%s"`, quote(tag), col))
	}
	return fmt.Sprintf("SELECT\n  %s\nFROM %s\nWHERE tags['aeroway'] = %s\nAND release = %s",
		strings.Join(cols, ",\n  "), table, quote(aeroway), quote(release))
}

// Download copies the result CSV of a query to path.
func (r *Runner) Download(ctx context.Context, id, path string) error {
	out, err := r.S3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.OutputBucket),
		Key:    aws.String(id + ".csv"),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to get results of query %s", id)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to download %s", path)
	}
	return f.Close()
}

// LatestRelease reads the current release name, e.g. "v1.58", from the
// distribution bucket. The object holds a path such as "release/v1.58".
func LatestRelease(ctx context.Context, api S3API) (string, error) {
	out, err := api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ReleaseBucket),
		Key:    aws.String(ReleaseKey),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch latest release")
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read latest release")
	}
	latest := strings.TrimSpace(string(b))
	parts := strings.Split(latest, "/")
	if len(parts) > 1 {
		latest = parts[1]
	}
	if latest == "" {
		return "", errors.New("latest release is empty")
	}
	return latest, nil
}

// CSVPath is the export of one aeroway value.
func CSVPath(dataDir, aeroway string) string {
	return filepath.Join(dataDir, "world", "osm", "daylight", aeroway+".csv")
}

// Fetcher runs the whole export.
type Fetcher struct {
	Runner  *Runner
	DataDir string
	TopTags int
}

// Fetch prepares the database and table, then exports every value of
// Aeroways from the latest release.
func (f *Fetcher) Fetch(ctx context.Context) error {
	r := f.Runner
	n := f.TopTags
	if n <= 0 {
		n = DefaultTopTags
	}
	if err := r.EnsureDatabase(ctx); err != nil {
		return err
	}
	if err := r.CreateTable(ctx); err != nil {
		return err
	}
	release, err := LatestRelease(ctx, r.S3)
	if err != nil {
		return err
	}
	r.Logger.Info("Latest release version fetched", zap.String("release", release))

	for _, aeroway := range Aeroways {
		tags, err := r.TopTags(ctx, aeroway, release, n)
		if err != nil {
			return errors.Wrapf(err, "top tags of aeroway=%s", aeroway)
		}
		id, err := r.Run(ctx, ProjectionQuery(r.Table, tags, aeroway, release))
		if err != nil {
			return errors.Wrapf(err, "export of aeroway=%s", aeroway)
		}
		path := CSVPath(f.DataDir, aeroway)
		if err := r.Download(ctx, id, path); err != nil {
			return err
		}
		r.Logger.Info("Results saved", zap.String("aeroway", aeroway), zap.String("path", path))
	}
	return nil
}
