package certificate

import "time"

type Certificate struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	AverageScore int       `json:"average_score"`
	URL          string    `json:"url"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ArtifactData is what a certificate artifact is rendered from.
type ArtifactData struct {
	CertificateID  string
	TraineeName    string
	Programme      string
	Issuer         string
	CompletionDate time.Time
	AverageScore   int
}

type Eligibility struct {
	Eligible         bool     `json:"eligible"`
	TotalModules     int      `json:"total_modules"`
	CompletedModules int      `json:"completed_modules"`
	AverageScore     int      `json:"average_score"`
	Remaining        []string `json:"remaining_module_ids"`
}
