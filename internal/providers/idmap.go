package providers

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/models"
)

// ID map CSV columns
const (
	idMapCanonicalColumn = "mlbid"
	idMapYahooColumn     = "yahooid"
	idMapESPNColumn      = "espnid"
	idMapNameColumn      = "playername"
)

// IDMapClient downloads the community player-ID map that links platform IDs to official IDs
type IDMapClient struct {
	fetcher *Fetcher
	url     string
	logger  *logrus.Logger
}

// NewIDMapClient creates an ID map client
func NewIDMapClient(fetcher *Fetcher, url string, logger *logrus.Logger) *IDMapClient {
	return &IDMapClient{fetcher: fetcher, url: url, logger: logger}
}

// Fetch downloads and parses the map
func (c *IDMapClient) Fetch(ctx context.Context) ([]models.IdentityMapping, error) {
	body, err := c.fetcher.Get(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("id map: %w", err)
	}

	mappings, stats, err := ParseIDMap(bytes.NewReader(body), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("id map: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"mappings": len(mappings),
		"skipped":  stats.Skipped,
	}).Info("Fetched player ID map")
	return mappings, nil
}

// ParseIDMap reads one mapping per platform ID present on each row.
// Rows without a numeric canonical ID are skipped.
func ParseIDMap(r io.Reader, updatedAt time.Time) ([]models.IdentityMapping, ParseStats, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var stats ParseStats
	header, err := reader.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read header: %w", err)
	}
	columns := headerIndex(header)

	canonicalCol, ok := columns[idMapCanonicalColumn]
	if !ok {
		return nil, stats, fmt.Errorf("missing %s column", strings.ToUpper(idMapCanonicalColumn))
	}
	nameCol, hasName := columns[idMapNameColumn]
	platformCols := map[string]int{}
	if col, ok := columns[idMapYahooColumn]; ok {
		platformCols[models.PlatformYahoo] = col
	}
	if col, ok := columns[idMapESPNColumn]; ok {
		platformCols[models.PlatformESPN] = col
	}

	var mappings []models.IdentityMapping
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Skipped++
				continue
			}
			return nil, stats, fmt.Errorf("failed to read id map: %w", err)
		}

		if canonicalCol >= len(record) {
			stats.Skipped++
			continue
		}
		canonicalID, err := strconv.Atoi(strings.TrimSpace(record[canonicalCol]))
		if err != nil || canonicalID <= 0 {
			stats.Skipped++
			continue
		}

		var name string
		if hasName && nameCol < len(record) {
			name = strings.TrimSpace(record[nameCol])
		}

		emitted := false
		for platform, col := range platformCols {
			if col >= len(record) {
				continue
			}
			platformID := strings.TrimSpace(record[col])
			if platformID == "" {
				continue
			}
			mappings = append(mappings, models.IdentityMapping{
				Platform:         platform,
				PlatformPlayerID: platformID,
				CanonicalID:      canonicalID,
				DisplayName:      name,
				UpdatedAt:        updatedAt,
			})
			emitted = true
		}
		if emitted {
			stats.Rows++
		}
	}
	return mappings, stats, nil
}
