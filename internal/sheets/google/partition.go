package google

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"finanzas/internal/core"
	ports "finanzas/internal/sheets"

	gsheet "google.golang.org/api/sheets/v4"
)

var _ ports.Partition = (*Partition)(nil)

var tabHeaders = map[string][]any{
	tabExpenses:   {"ID", "Fecha", "Hora", "Monto Original", "Moneda", "Monto USD", "Tasa Usada", "Categoría", "Concepto", "Referencia", "Registrado por", "Fecha Registro", "Imagen"},
	tabIncomes:    {"ID", "Fecha", "Hora", "Monto Original", "Moneda", "Monto USD", "Tasa Usada", "Categoría", "Concepto", "Referencia", "Registrado por", "Fecha Registro", "Imagen"},
	tabCategories: {"Nombre"},
	tabConfig:     {"Clave", "Valor"},
	tabBudgets:    {"Categoría", "Límite USD"},
	tabSavings:    {"Meta", "Objetivo USD", "Ahorrado Actual", "Porcentaje", "Hitos (%)", "Ultima Act", "Usuario"},
	tabDebts:      {"Persona", "Monto", "Fecha Préstamo", "Fecha Retorno", "Estado", "Registrado por", "Fecha Pago"},
	tabRecurring:  {"Nombre", "Monto", "Dia", "UltimoPago", "Activo"},
}

const recordedAtLayout = "2006-01-02 15:04:05"

type Partition struct {
	client        *Client
	spreadsheetID string
	key           core.MonthKey
}

func (p *Partition) Key() core.MonthKey { return p.key }

func (p *Partition) svc() *gsheet.Service { return p.client.sheetsSvc }

// EnsureStructure creates any worksheet that is missing and seeds headers,
// factory configuration and default categories. Existing tabs are left alone,
// so re-running after a partial failure is safe.
func (p *Partition) EnsureStructure(ctx context.Context) error {
	meta, err := p.svc().Spreadsheets.Get(p.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet metadata: %w", err)
	}

	existing := map[string]int64{}
	for _, s := range meta.Sheets {
		existing[s.Properties.Title] = s.Properties.SheetId
	}

	order := []string{tabExpenses, tabIncomes, tabCategories, tabConfig, tabBudgets, tabSavings, tabDebts, tabRecurring}
	var requests []*gsheet.Request
	var created []string
	for _, tab := range order {
		if _, ok := existing[tab]; ok {
			continue
		}
		requests = append(requests, &gsheet.Request{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: tab},
			},
		})
		created = append(created, tab)
	}

	// Drop the placeholder sheet new spreadsheets come with, but never the
	// only remaining one.
	for _, placeholder := range []string{"Sheet1", "Hoja 1"} {
		if id, ok := existing[placeholder]; ok && len(existing)+len(created) > 1 {
			requests = append(requests, &gsheet.Request{
				DeleteSheet: &gsheet.DeleteSheetRequest{SheetId: id},
			})
		}
	}

	if len(requests) > 0 {
		_, err = p.svc().Spreadsheets.BatchUpdate(p.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
			Requests: requests,
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("create worksheets: %w", err)
		}
	}

	for _, tab := range created {
		rows := [][]any{tabHeaders[tab]}
		switch tab {
		case tabConfig:
			rows = append(rows,
				[]any{keyRate, "1.0"},
				[]any{keyRateSource, core.DefaultRateSource},
				[]any{keyConfirmation, "SI"},
			)
		case tabCategories:
			for _, cat := range defaultCategories {
				rows = append(rows, []any{cat})
			}
		}
		if err := p.updateRange(ctx, fmt.Sprintf("%s!A1", tab), rows); err != nil {
			return fmt.Errorf("seed %s: %w", tab, err)
		}
	}
	return nil
}

// --- configuration ---

func (p *Partition) Config(ctx context.Context) (core.PartitionConfig, error) {
	rows, err := p.readRows(ctx, tabConfig)
	if err != nil {
		return core.PartitionConfig{}, err
	}
	cfg := core.DefaultPartitionConfig()
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		switch row[0] {
		case keyRate:
			if v, err := parseFloat(row[1]); err == nil {
				cfg.Rate = v
			}
		case keyRateSource:
			if row[1] != "" {
				cfg.RateSource = row[1]
			}
		case keyConfirmation:
			cfg.ConfirmationRequired = strings.EqualFold(row[1], "SI")
		case keyRateBCV:
			if v, err := parseFloat(row[1]); err == nil {
				cfg.RateBCV = v
			}
		case keyRateParallel:
			if v, err := parseFloat(row[1]); err == nil {
				cfg.RateParallel = v
			}
		}
	}
	return cfg, nil
}

func (p *Partition) SetRate(ctx context.Context, rate float64, source string, bcv, parallel float64) error {
	if err := p.setConfigValue(ctx, keyRate, formatFloat(rate)); err != nil {
		return err
	}
	if source == "" {
		source = core.DefaultRateSource
	}
	if err := p.setConfigValue(ctx, keyRateSource, source); err != nil {
		return err
	}
	// Reference values of both rates, kept for audit.
	if bcv > 0 {
		if err := p.setConfigValue(ctx, keyRateBCV, formatFloat(bcv)); err != nil {
			return err
		}
	}
	if parallel > 0 {
		if err := p.setConfigValue(ctx, keyRateParallel, formatFloat(parallel)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Partition) SetConfirmationRequired(ctx context.Context, required bool) error {
	v := "NO"
	if required {
		v = "SI"
	}
	return p.setConfigValue(ctx, keyConfirmation, v)
}

func (p *Partition) setConfigValue(ctx context.Context, key, value string) error {
	rows, err := p.readRows(ctx, tabConfig)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if len(row) > 0 && row[0] == key {
			return p.updateRange(ctx, fmt.Sprintf("%s!B%d", tabConfig, i+2), [][]any{{value}})
		}
	}
	return p.appendRow(ctx, tabConfig, []any{key, value})
}

// --- categories ---

func (p *Partition) Categories(ctx context.Context) ([]string, error) {
	rows, err := p.readRows(ctx, tabCategories)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		out = append(out, row[0])
	}
	return out, nil
}

func (p *Partition) SetCategories(ctx context.Context, categories []string) error {
	if err := p.clearRange(ctx, fmt.Sprintf("%s!A2:A", tabCategories)); err != nil {
		return err
	}
	if len(categories) == 0 {
		return nil
	}
	rows := make([][]any, len(categories))
	for i, c := range categories {
		rows[i] = []any{c}
	}
	return p.updateRange(ctx, fmt.Sprintf("%s!A2", tabCategories), rows)
}

// --- transactions ---

func (p *Partition) Transactions(ctx context.Context, kind core.TransactionKind) ([]core.Transaction, error) {
	rows, err := p.readRows(ctx, tabFor(kind))
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, ok := parseTransaction(row, kind)
		if !ok {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (p *Partition) AppendTransaction(ctx context.Context, tx core.Transaction) error {
	return p.appendRow(ctx, tabFor(tx.Kind), []any{
		tx.ID,
		tx.Date.String(),
		tx.Time,
		tx.AmountOriginal.String(),
		tx.Currency,
		tx.AmountBase.String(),
		formatFloat(tx.RateApplied),
		tx.Category,
		tx.Concept,
		tx.Reference,
		tx.Reporter,
		tx.RecordedAt.Format(recordedAtLayout),
		tx.ReceiptLink,
	})
}

func tabFor(kind core.TransactionKind) string {
	if kind == core.KindIncome {
		return tabIncomes
	}
	return tabExpenses
}

func parseTransaction(row []string, kind core.TransactionKind) (core.Transaction, bool) {
	if len(row) < 6 {
		return core.Transaction{}, false
	}
	date, err := core.ParseDate(cell(row, 1))
	if err != nil {
		return core.Transaction{}, false
	}
	origCents, err := parseCents(cell(row, 3))
	if err != nil {
		return core.Transaction{}, false
	}
	baseCents, err := parseCents(cell(row, 5))
	if err != nil {
		return core.Transaction{}, false
	}
	rate, _ := parseFloat(cell(row, 6))
	recordedAt, _ := time.Parse(recordedAtLayout, cell(row, 11))
	return core.Transaction{
		ID:             cell(row, 0),
		Kind:           kind,
		Date:           date,
		Time:           cell(row, 2),
		AmountOriginal: core.Money{Cents: origCents},
		Currency:       cell(row, 4),
		AmountBase:     core.Money{Cents: baseCents},
		RateApplied:    rate,
		Category:       cell(row, 7),
		Concept:        cell(row, 8),
		Reference:      cell(row, 9),
		Reporter:       cell(row, 10),
		RecordedAt:     recordedAt,
		ReceiptLink:    cell(row, 12),
	}, true
}

// --- budgets ---

func (p *Partition) Budgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := p.readRows(ctx, tabBudgets)
	if err != nil {
		return nil, err
	}
	var out []core.Budget
	for _, row := range rows {
		if len(row) < 2 || row[0] == "" {
			continue
		}
		cents, err := parseCents(row[1])
		if err != nil {
			continue
		}
		out = append(out, core.Budget{Category: row[0], Limit: core.Money{Cents: cents}})
	}
	return out, nil
}

func (p *Partition) SetBudget(ctx context.Context, b core.Budget) error {
	rows, err := p.readRows(ctx, tabBudgets)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if len(row) > 0 && strings.EqualFold(row[0], b.Category) {
			return p.updateRange(ctx, fmt.Sprintf("%s!B%d", tabBudgets, i+2), [][]any{{b.Limit.String()}})
		}
	}
	return p.appendRow(ctx, tabBudgets, []any{b.Category, b.Limit.String()})
}

// --- savings ---

func (p *Partition) Savings(ctx context.Context) ([]core.SavingsGoal, error) {
	rows, err := p.readRows(ctx, tabSavings)
	if err != nil {
		return nil, err
	}
	var out []core.SavingsGoal
	for _, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		target, _ := parseCents(cell(row, 1))
		saved, _ := parseCents(cell(row, 2))
		lastUpdated, _ := time.Parse("2006-01-02 15:04", cell(row, 5))
		out = append(out, core.SavingsGoal{
			Name:        row[0],
			Target:      core.Money{Cents: target},
			Saved:       core.Money{Cents: saved},
			Milestones:  parseMilestones(cell(row, 4)),
			LastUpdated: lastUpdated,
			LastActor:   cell(row, 6),
		})
	}
	return out, nil
}

func (p *Partition) UpsertGoal(ctx context.Context, g core.SavingsGoal) error {
	rows, err := p.readRows(ctx, tabSavings)
	if err != nil {
		return err
	}
	values := [][]any{{
		g.Name,
		g.Target.String(),
		g.Saved.String(),
		fmt.Sprintf("%.1f%%", g.Pct()),
		formatMilestones(g.Milestones),
		g.LastUpdated.Format("2006-01-02 15:04"),
		g.LastActor,
	}}
	for i, row := range rows {
		if len(row) > 0 && strings.EqualFold(row[0], g.Name) {
			return p.updateRange(ctx, fmt.Sprintf("%s!A%d:G%d", tabSavings, i+2, i+2), values)
		}
	}
	return p.appendRow(ctx, tabSavings, values[0])
}

// --- debts ---

func (p *Partition) Debts(ctx context.Context) ([]core.Debt, error) {
	rows, err := p.readRows(ctx, tabDebts)
	if err != nil {
		return nil, err
	}
	var out []core.Debt
	for _, row := range rows {
		if len(row) < 5 || row[0] == "" {
			continue
		}
		amount, err := parseCents(cell(row, 1))
		if err != nil {
			continue
		}
		loanDate, _ := core.ParseDate(cell(row, 2))
		dueDate, _ := core.ParseDate(cell(row, 3))
		paidDate, _ := core.ParseDate(cell(row, 6))
		out = append(out, core.Debt{
			Person:      row[0],
			Amount:      core.Money{Cents: amount},
			LoanDate:    loanDate,
			DueDate:     dueDate,
			Status:      parseDebtStatus(cell(row, 4)),
			Responsible: cell(row, 5),
			PaidDate:    paidDate,
		})
	}
	return out, nil
}

func (p *Partition) AppendDebt(ctx context.Context, d core.Debt) error {
	return p.appendRow(ctx, tabDebts, debtRow(d))
}

func (p *Partition) UpdateDebt(ctx context.Context, index int, d core.Debt) error {
	row := index + 2 // header offset
	return p.updateRange(ctx, fmt.Sprintf("%s!A%d:G%d", tabDebts, row, row), [][]any{debtRow(d)})
}

func debtRow(d core.Debt) []any {
	status := "PENDIENTE"
	if d.Status == core.DebtPaid {
		status = "PAGADO"
	}
	return []any{
		d.Person,
		d.Amount.String(),
		d.LoanDate.String(),
		d.DueDate.String(),
		status,
		d.Responsible,
		d.PaidDate.String(),
	}
}

func parseDebtStatus(s string) core.DebtStatus {
	if strings.EqualFold(strings.TrimSpace(s), "PAGADO") {
		return core.DebtPaid
	}
	return core.DebtPending
}

// --- recurring ---

func (p *Partition) Recurring(ctx context.Context) ([]core.RecurringObligation, error) {
	rows, err := p.readRows(ctx, tabRecurring)
	if err != nil {
		return nil, err
	}
	var out []core.RecurringObligation
	for _, row := range rows {
		if len(row) < 3 || row[0] == "" {
			continue
		}
		amount, err := parseCents(cell(row, 1))
		if err != nil {
			continue
		}
		day, err := strconv.Atoi(strings.TrimSpace(cell(row, 2)))
		if err != nil {
			continue
		}
		lastPaid, _ := core.ParseDate(cell(row, 3))
		out = append(out, core.RecurringObligation{
			Name:       row[0],
			Amount:     core.Money{Cents: amount},
			DayOfMonth: day,
			LastPaid:   lastPaid,
			Active:     !strings.EqualFold(strings.TrimSpace(cell(row, 4)), "NO"),
		})
	}
	return out, nil
}

func (p *Partition) AppendRecurring(ctx context.Context, o core.RecurringObligation) error {
	return p.appendRow(ctx, tabRecurring, recurringRow(o))
}

func (p *Partition) UpdateRecurring(ctx context.Context, index int, o core.RecurringObligation) error {
	row := index + 2
	return p.updateRange(ctx, fmt.Sprintf("%s!A%d:E%d", tabRecurring, row, row), [][]any{recurringRow(o)})
}

func recurringRow(o core.RecurringObligation) []any {
	active := "SI"
	if !o.Active {
		active = "NO"
	}
	return []any{o.Name, o.Amount.String(), o.DayOfMonth, o.LastPaid.String(), active}
}

// --- sheet IO primitives ---

// readRows returns all data rows of a tab, header excluded, cells as trimmed
// strings.
func (p *Partition) readRows(ctx context.Context, tab string) ([][]string, error) {
	rng := fmt.Sprintf("%s!A2:Z", tab)
	resp, err := p.svc().Spreadsheets.Values.Get(p.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cols := make([]string, len(row))
		for i, v := range row {
			cols[i] = strings.TrimSpace(fmt.Sprint(v))
		}
		out = append(out, cols)
	}
	return out, nil
}

func (p *Partition) appendRow(ctx context.Context, tab string, row []any) error {
	rng := fmt.Sprintf("%s!A:A", tab)
	_, err := p.svc().Spreadsheets.Values.Append(p.spreadsheetID, rng, &gsheet.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", tab, err)
	}
	return nil
}

func (p *Partition) updateRange(ctx context.Context, rng string, values [][]any) error {
	_, err := p.svc().Spreadsheets.Values.Update(p.spreadsheetID, rng, &gsheet.ValueRange{
		Values: values,
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (p *Partition) clearRange(ctx context.Context, rng string) error {
	_, err := p.svc().Spreadsheets.Values.Clear(p.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}
