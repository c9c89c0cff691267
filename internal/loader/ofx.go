package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/spf13/afero"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// OFXSource reads bank statement exports (OFX/QFX) as spreadsheet claims.
// Each statement transaction becomes one record keyed by check number, or
// by FITID when no check number is present.
type OFXSource struct {
	fs   afero.Fs
	path string
}

// NewOFXSource creates a source for path.
func NewOFXSource(fs afero.Fs, path string) *OFXSource {
	return &OFXSource{fs: fs, path: path}
}

// Name returns the file name used in record positions.
func (s *OFXSource) Name() string {
	return filepath.Base(s.path)
}

// Origin implements Source.
func (s *OFXSource) Origin() model.Origin {
	return model.OriginSpreadsheet
}

// Load parses every bank and credit card statement in the file.
func (s *OFXSource) Load(ctx context.Context, company model.CompanyProfile) ([]model.SourceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := s.fs.Open(s.path)
	if err != nil {
		return nil, unreadable(s.path, err)
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, unreadable(s.path, err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, unreadable(s.path, fmt.Errorf("failed to parse OFX file: %w", err))
	}

	var txns []ofxgo.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			bankStmts++
			txns = append(txns, stmt.BankTranList.Transactions...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			ccStmts++
			txns = append(txns, stmt.BankTranList.Transactions...)
		}
	}

	records := make([]model.SourceRecord, 0, len(txns))
	for i, tx := range txns {
		records = append(records, model.SourceRecord{
			Origin:   model.OriginSpreadsheet,
			Company:  company.ID,
			Position: model.Position{Source: s.Name(), Index: i + 1},
			Fields:   convertTransaction(tx),
		})
	}

	slog.Debug("parsed OFX file",
		"company", company.ID,
		"file", s.Name(),
		"transactions", len(records),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return records, nil
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML-style files sometimes drop the closing bracket of a bare tag.
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func convertTransaction(tx ofxgo.Transaction) map[string]string {
	document := string(tx.CheckNum)
	if document == "" {
		document = string(tx.FiTID)
	}

	// OFX signs debits negative; claims carry absolute amounts.
	amount := strings.TrimPrefix(tx.TrnAmt.FloatString(2), "-")

	fields := map[string]string{
		FieldDocument:     document,
		FieldCounterparty: payeeName(tx),
		FieldAmount:       amount,
		FieldDescription:  strings.TrimSpace(string(tx.Memo)),
	}
	if !tx.DtPosted.IsZero() {
		fields[FieldDate] = tx.DtPosted.Format("2006-01-02")
	}
	return fields
}

// payeeName prefers PAYEE over NAME, then MEMO when NAME is generic.
func payeeName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && isGenericDescription(name) {
		name = strings.TrimSpace(string(tx.Memo))
	}
	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
