package service

import (
	"log/slog"

	"github.com/amirhzn/mida-tracker-backend/internal/domain/matcher"
	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/storage"
)

// MatchService matches parsed invoice lines against a stored certificate.
// It loads the certificate's items with their live remaining quantities,
// so the matcher's simulated balances start from the current ledger state.
type MatchService struct {
	store    storage.Repository
	defaults matcher.Config
	logger   *slog.Logger
}

// NewMatchService creates a match service. defaults applies when a request
// carries no mode or threshold of its own.
func NewMatchService(store storage.Repository, defaults matcher.Config, logger *slog.Logger) *MatchService {
	if defaults.Mode == "" {
		defaults.Mode = matcher.ModeFuzzy
	}
	if defaults.Threshold <= 0 {
		defaults.Threshold = matcher.DefaultConfig().Threshold
	}
	return &MatchService{
		store:    store,
		defaults: defaults,
		logger:   logger,
	}
}

// MatchCertificate runs one matching pass of invoiceItems against the
// items of a certificate. overrides may be nil; zero-valued fields fall
// back to the service defaults. Read-only: nothing is committed.
func (s *MatchService) MatchCertificate(certificateID string, invoiceItems []matcher.InvoiceItem, overrides *matcher.Config) (*matcher.Result, error) {
	cert, err := s.store.GetCertificate(certificateID)
	if err != nil {
		return nil, err
	}

	certItems := make([]matcher.CertificateItem, 0, len(cert.Items))
	for _, item := range cert.Items {
		certItems = append(certItems, matcher.CertificateItem{
			ID:               item.ID,
			LineNo:           item.LineNo,
			HSCode:           item.HSCode,
			Name:             item.ItemName,
			UOM:              item.UOM,
			ApprovedQuantity: item.ApprovedQuantity,
			Remaining:        item.RemainingQuantity,
		})
	}

	config := s.defaults
	if overrides != nil {
		if overrides.Mode != "" {
			config.Mode = overrides.Mode
		}
		if overrides.Threshold > 0 {
			config.Threshold = overrides.Threshold
		}
	}

	result := matcher.NewMatcher(config).Match(invoiceItems, certItems)

	s.logger.Info("invoice matched",
		"certificate_id", certificateID,
		"mode", config.Mode,
		"invoice_items", result.TotalItems,
		"matched", result.MatchedCount,
		"unmatched", result.UnmatchedCount,
		"warnings", len(result.Warnings),
	)

	return &result, nil
}
