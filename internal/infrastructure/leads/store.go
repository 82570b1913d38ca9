// Package leads provides the per-campaign imported lead files: one username
// per line in .txt form, or JSON-lines records carrying enrichment fields.
package leads

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

// ImportedLead is one row of a campaign's lead file.
type ImportedLead struct {
	Username  string `json:"username"`
	FirstName string `json:"firstname,omitempty"`
	FullName  string `json:"fullname,omitempty"`
}

// Store reads and writes per-campaign lead files under a directory.
type Store struct {
	dir    string
	logger *logging.ChanneledLogger
}

// NewStore creates a lead store rooted at dir.
func NewStore(dir string, logger *logging.ChanneledLogger) *Store {
	return &Store{dir: dir, logger: logger}
}

func (s *Store) txtPath(campaignID string) string {
	return filepath.Join(s.dir, campaignID+".txt")
}

func (s *Store) jsonlPath(campaignID string) string {
	return filepath.Join(s.dir, campaignID+".jsonl")
}

// Exists reports whether any lead file exists for the campaign.
func (s *Store) Exists(campaignID string) bool {
	if _, err := os.Stat(s.jsonlPath(campaignID)); err == nil {
		return true
	}
	_, err := os.Stat(s.txtPath(campaignID))
	return err == nil
}

// CreateFromTargetInput materializes a .txt lead file from a comma-separated
// username list. Returns the number of usernames written.
func (s *Store) CreateFromTargetInput(campaignID, targetInput string) (int, error) {
	var usernames []string
	for _, raw := range strings.Split(targetInput, ",") {
		if u := strings.TrimSpace(raw); u != "" {
			usernames = append(usernames, u)
		}
	}
	if len(usernames) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create leads dir: %w", err)
	}
	var sb strings.Builder
	for _, u := range usernames {
		sb.WriteString(u)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(s.txtPath(campaignID), []byte(sb.String()), 0644); err != nil {
		return 0, fmt.Errorf("failed to write leads file: %w", err)
	}
	s.logger.System().Info("Created leads file from campaign data",
		"campaignId", campaignID, "count", len(usernames))
	return len(usernames), nil
}

// SaveJSONL writes enriched lead records as JSON lines, replacing any
// existing file.
func (s *Store) SaveJSONL(campaignID string, rows []ImportedLead) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create leads dir: %w", err)
	}
	var sb strings.Builder
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			return err
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return os.WriteFile(s.jsonlPath(campaignID), []byte(sb.String()), 0644)
}

// Load reads the campaign's lead file in order. The .jsonl form wins when
// both exist. Malformed JSON lines and comment lines are skipped.
func (s *Store) Load(campaignID string) ([]ImportedLead, error) {
	if rows, err := s.loadJSONL(campaignID); err == nil {
		return rows, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return s.loadTxt(campaignID)
}

func (s *Store) loadJSONL(campaignID string) ([]ImportedLead, error) {
	f, err := os.Open(s.jsonlPath(campaignID))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []ImportedLead
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row ImportedLead
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			s.logger.System().Debug("Skipping malformed lead row", "campaignId", campaignID)
			continue
		}
		if row.Username = strings.TrimSpace(row.Username); row.Username != "" {
			rows = append(rows, row)
		}
	}
	return rows, scanner.Err()
}

func (s *Store) loadTxt(campaignID string) ([]ImportedLead, error) {
	f, err := os.Open(s.txtPath(campaignID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var rows []ImportedLead
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		u := strings.TrimSpace(scanner.Text())
		if u == "" || strings.HasPrefix(u, "#") {
			continue
		}
		rows = append(rows, ImportedLead{Username: u})
	}
	return rows, scanner.Err()
}
