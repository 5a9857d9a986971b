package journal

import (
	"errors"
	"time"

	"github.com/rustyeddy/regimetrader/session"
)

// RecordUpdate writes what one processed bar produced: the trade it closed,
// if any, and its equity point.
func RecordUpdate(j Journal, u session.Update) error {
	var errs []error
	if u.Closed != nil {
		errs = append(errs, j.RecordTrade(NewTradeRecord(u.SessionID, u.Bar.Timeframe.String(), *u.Closed)))
	}
	if !u.Equity.Time.IsZero() {
		errs = append(errs, j.RecordEquity(NewEquitySnapshot(u.SessionID, u.Equity)))
	}
	return errors.Join(errs...)
}

// NewSessionRecord summarizes s.
func NewSessionRecord(s *session.Session, mode, dataset string, config []byte) SessionRecord {
	return SessionRecord{
		SessionID: s.ID(),
		Created:   time.Now().UTC(),
		Mode:      mode,
		Dataset:   dataset,
		Config:    config,
		Summary:   s.Summary(),
	}
}
