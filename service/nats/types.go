package nats

import (
	"time"

	"github.com/brojonat/solsweep/service/reclaim"
)

// Event types carried in the "type" field.
const (
	EventTypeReclaim = "reclaim"
	EventTypeScan    = "scan"
)

// ReclaimEvent is published to "reclaim.{wallet}" after every wallet run.
type ReclaimEvent struct {
	Type   string `json:"type"`
	Wallet string `json:"wallet"`
	Mode   string `json:"mode"`
	DryRun bool   `json:"dry_run"`

	Candidates            int      `json:"candidates"`
	CandidateRentLamports uint64   `json:"candidate_rent_lamports"`
	Closed                int      `json:"closed"`
	ReclaimedLamports     uint64   `json:"reclaimed_lamports"`
	FailedBatches         int      `json:"failed_batches"`
	Signatures            []string `json:"signatures,omitempty"`
	RelayURI              string   `json:"relay_uri,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	FinishedAt  time.Time `json:"finished_at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromWalletResult converts a pipeline result into an event.
func FromWalletResult(res reclaim.WalletResult) *ReclaimEvent {
	return &ReclaimEvent{
		Type:                  EventTypeReclaim,
		Wallet:                res.Wallet.String(),
		Mode:                  res.Mode,
		DryRun:                res.DryRun,
		Candidates:            res.Candidates,
		CandidateRentLamports: res.CandidateRentLamports,
		Closed:                res.Closed,
		ReclaimedLamports:     res.ReclaimedLamports,
		FailedBatches:         res.FailedBatches,
		Signatures:            res.Signatures,
		RelayURI:              res.RelayURI,
		Success:               res.Success,
		Error:                 res.Error,
		FinishedAt:            res.FinishedAt,
		PublishedAt:           time.Now().UTC(),
	}
}

// ScanEvent is published to "reclaim.{wallet}" after every health scan.
type ScanEvent struct {
	Type string `json:"type"`
	reclaim.ScanReport
	PublishedAt time.Time `json:"published_at"`
}

// FromScanReport converts a scan report into an event.
func FromScanReport(report *reclaim.ScanReport) *ScanEvent {
	return &ScanEvent{
		Type:        EventTypeScan,
		ScanReport:  *report,
		PublishedAt: time.Now().UTC(),
	}
}
