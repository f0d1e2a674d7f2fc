// Package bqsource reads words from a text column of a BigQuery table.
package bqsource

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"regexp"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

var (
	projectPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{4,28}[a-z0-9]$`)
	tablePattern   = regexp.MustCompile(`^([a-z][a-z0-9-]{4,28}[a-z0-9]\.)?[A-Za-z0-9_]+\.[A-Za-z0-9_-]+$`)
	columnPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

type Params struct {
	ProjectID string
	// Table is "dataset.table" in ProjectID, or "project.dataset.table".
	Table    string
	Column   string
	Location string
	// Limit caps the number of rows read. Zero reads every row.
	Limit int
}

// Query returns the SQL that selects the configured column.
func (p Params) Query() (string, error) {
	if !projectPattern.MatchString(p.ProjectID) {
		return "", fmt.Errorf("invalid project id %q", p.ProjectID)
	}
	if !tablePattern.MatchString(p.Table) {
		return "", fmt.Errorf("invalid table %q", p.Table)
	}
	if !columnPattern.MatchString(p.Column) {
		return "", fmt.Errorf("invalid column %q", p.Column)
	}
	if p.Limit < 0 {
		return "", fmt.Errorf("invalid limit %d", p.Limit)
	}

	table := p.Table
	if strings.Count(table, ".") == 1 {
		table = p.ProjectID + "." + table
	}
	query := fmt.Sprintf("SELECT `%s` FROM `%s` WHERE `%s` IS NOT NULL", p.Column, table, p.Column)
	if p.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", p.Limit)
	}
	return query, nil
}

// Source is a word source backed by a BigQuery query.
type Source struct {
	client   *bigquery.Client
	query    string
	location string
	logger   *slog.Logger
}

func New(ctx context.Context, p Params, logger *slog.Logger) (*Source, error) {
	query, err := p.Query()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client, err := bigquery.NewClient(ctx, p.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	return &Source{
		client:   client,
		query:    query,
		location: p.Location,
		logger:   logger,
	}, nil
}

func (s *Source) Close() error {
	return s.client.Close()
}

// Words runs the query and yields the whitespace-separated words of each row.
func (s *Source) Words(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		it, err := s.run(ctx)
		if err != nil {
			yield("", err)
			return
		}
		rows, words := readWords(it, yield)
		s.logger.InfoContext(ctx, "read words from bigquery",
			slog.Int("rows", rows),
			slog.Int("words", words),
		)
	}
}

func (s *Source) run(ctx context.Context) (*bigquery.RowIterator, error) {
	q := s.client.Query(s.query)
	q.Location = s.location

	s.logger.DebugContext(ctx, "running query", slog.String("query", s.query))
	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("q.Run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("job.Wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("status.Err: %w", err)
	}
	it, err := job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("job.Read: %w", err)
	}
	return it, nil
}

// rowIterator is the part of *bigquery.RowIterator readWords uses.
type rowIterator interface {
	Next(dst any) error
}

// readWords yields the words of every row of it until the rows run out, an
// error occurs, or yield returns false. It returns the rows and words read.
func readWords(it rowIterator, yield func(string, error) bool) (rows, words int) {
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			return rows, words
		}
		if err != nil {
			yield("", fmt.Errorf("it.Next: %w", err))
			return rows, words
		}
		rows++
		if len(row) == 0 || row[0] == nil {
			continue
		}

		text, ok := row[0].(string)
		if !ok {
			yield("", fmt.Errorf("row[0] is not a string: %v", row[0]))
			return rows, words
		}
		for _, w := range strings.Fields(text) {
			words++
			if !yield(w, nil) {
				return rows, words
			}
		}
	}
}
