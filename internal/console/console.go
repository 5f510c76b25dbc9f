// Package console implements the interactive expense menu.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"expensectl/internal/cache"
	"expensectl/internal/core"
	"expensectl/internal/log"
	"expensectl/internal/ports"
)

const (
	optAdd = iota + 1
	optView
	optUpdate
	optDelete
	optExit
	optRefresh
	optExport
	optSnapshot
)

const (
	msgInvalidOption      = "// Error! Invalid option. Please try again //"
	msgInvalidDescription = "// Error! Invalid description. Please try again //"
	msgInvalidAmount      = "// Error! Invalid amount. Please try again //"
	msgInvalidDate        = "// Error! Invalid date. Please try again //"
	msgInvalidNumber      = "// Error! Invalid expense number //"
	msgNoExpenses         = "// No expenses available //"
	msgNothingToUpdate    = "// Nothing to update //"
	msgNotReloaded        = "// Warning! The expense list could not be reloaded //"
)

const recentMutations = 5

// mutationLister is implemented by snapshot stores that also keep the
// mutation journal.
type mutationLister interface {
	RecentMutations(ctx context.Context, limit int) ([]core.Mutation, error)
}

// Options configures a Console. In and Out are required; the rest enable
// the optional menu entries.
type Options struct {
	In        io.Reader
	Out       io.Writer
	Exporter  ports.Exporter
	Snapshots ports.SnapshotReader
	Logger    *log.Logger
}

type Console struct {
	cache     *cache.ExpenseCache
	in        *lineReader
	out       io.Writer
	exporter  ports.Exporter
	snapshots ports.SnapshotReader
	logger    *log.Logger
	today     func() core.Date
}

func New(c *cache.ExpenseCache, opts Options) *Console {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Console{
		cache:     c,
		in:        newLineReader(opts.In),
		out:       opts.Out,
		exporter:  opts.Exporter,
		snapshots: opts.Snapshots,
		logger:    logger.WithComponent(log.ComponentConsole),
		today:     core.Today,
	}
}

// Run shows the menu until the user exits or the input ends, in which case
// it returns nil. A cancelled ctx ends the loop with ctx.Err().
func (c *Console) Run(ctx context.Context) error {
	defer c.in.Close()

	for {
		c.printMenu()
		choice, err := c.readChoice(ctx)
		if err != nil {
			return endOfInput(err)
		}

		switch choice {
		case optAdd:
			err = c.add(ctx)
		case optView:
			c.view()
			_, err = c.prompt(ctx, "Press enter to continue")
		case optUpdate:
			err = c.update(ctx)
		case optDelete:
			err = c.delete(ctx)
		case optExit:
			return nil
		case optRefresh:
			c.refresh(ctx)
		case optExport:
			c.export(ctx)
		case optSnapshot:
			c.showSnapshot(ctx)
		}
		if err != nil {
			return endOfInput(err)
		}
	}
}

func endOfInput(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (c *Console) printMenu() {
	c.println("\nExpenses Menu:")
	c.println("1. Add Expense")
	c.println("2. View Expenses")
	c.println("3. Update Expense")
	c.println("4. Delete Expense")
	c.println("5. Exit")
	c.println("6. Refresh Expenses")
	c.println("7. Export to Spreadsheet")
	c.println("8. Show Last Snapshot")
}

func (c *Console) readChoice(ctx context.Context) (int, error) {
	for {
		line, err := c.prompt(ctx, "\nEnter option: ")
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= optAdd && n <= optSnapshot {
			return n, nil
		}
		c.println("\n" + msgInvalidOption)
	}
}

func (c *Console) add(ctx context.Context) error {
	var desc string
	for desc == "" {
		line, err := c.prompt(ctx, "\nEnter expense description: ")
		if err != nil {
			return err
		}
		desc = titleCase(line)
		if desc == "" {
			c.println(msgInvalidDescription)
		}
	}

	amount, err := c.readAmount(ctx, "Enter expense amount: ")
	if err != nil {
		return err
	}

	date, err := c.readDate(ctx, "Enter expense date (YYYY-MM-DD, blank for today): ")
	if err != nil {
		return err
	}
	if date.IsEmpty() {
		date = c.today()
	}

	res := c.cache.Add(ctx, core.NewExpense{Description: desc, Amount: amount, Date: date})
	c.report(res, "// Expense added successfully //")
	return nil
}

func (c *Console) readAmount(ctx context.Context, label string) (decimal.Decimal, error) {
	for {
		line, err := c.prompt(ctx, label)
		if err != nil {
			return decimal.Zero, err
		}
		if amount, err := core.ParseAmount(line); err == nil {
			return amount, nil
		}
		c.println(msgInvalidAmount)
	}
}

// readDate re-prompts until the line is empty or a valid date. An empty line
// yields the zero Date.
func (c *Console) readDate(ctx context.Context, label string) (core.Date, error) {
	for {
		line, err := c.prompt(ctx, label)
		if err != nil {
			return core.Date{}, err
		}
		if strings.TrimSpace(line) == "" {
			return core.Date{}, nil
		}
		if d, err := core.ParseDate(line); err == nil {
			return d, nil
		}
		c.println(msgInvalidDate)
	}
}

func (c *Console) view() {
	expenses := c.cache.View()
	if len(expenses) == 0 {
		c.println(msgNoExpenses)
		return
	}
	c.printList(expenses)

	s := core.Summarize(expenses)
	c.printf("\n%d expense(s), total $%s\n", s.Count, core.FormatAmount(s.Total))
	for _, m := range s.ByMonth {
		c.printf("  %d-%02d: %d, $%s\n", m.Year, int(m.Month), m.Count, core.FormatAmount(m.Total))
	}
}

func (c *Console) printList(expenses []core.Expense) {
	for _, e := range expenses {
		c.printf("%d. %s - $%s on %s\n", e.LocalID, e.Description, core.FormatAmount(e.Amount), e.Date)
	}
}

// selectExpense shows the list and resolves the number the user picks.
// ok is false when there is nothing to pick or the number is unknown.
func (c *Console) selectExpense(ctx context.Context, verb string) (core.Expense, bool, error) {
	c.view()
	if c.cache.Len() == 0 {
		return core.Expense{}, false, nil
	}

	line, err := c.prompt(ctx, fmt.Sprintf("\nEnter the expense number to %s: ", verb))
	if err != nil {
		return core.Expense{}, false, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil {
		c.println("\n" + msgInvalidNumber)
		return core.Expense{}, false, nil
	}
	if _, ok := c.cache.Resolve(n); !ok {
		c.logger.DebugContext(ctx, "Unknown expense number", log.FieldLocalID, n)
		c.println("\n" + msgInvalidNumber)
		return core.Expense{}, false, nil
	}
	return c.cache.View()[n-1], true, nil
}

func (c *Console) update(ctx context.Context) error {
	current, ok, err := c.selectExpense(ctx, "update")
	if err != nil || !ok {
		return err
	}

	var patch core.ExpensePatch

	line, err := c.prompt(ctx, "Edit description (blank to keep): ")
	if err != nil {
		return err
	}
	if desc := titleCase(line); desc != "" && desc != current.Description {
		patch.Description = &desc
	}

	line, err = c.prompt(ctx, "Edit amount (blank to keep): ")
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) != "" {
		amount, perr := core.ParseAmount(line)
		if perr != nil {
			c.println(msgInvalidAmount)
			return nil
		}
		if !amount.Equal(current.Amount) {
			patch.Amount = &amount
		}
	}

	line, err = c.prompt(ctx, "Edit date (YYYY-MM-DD, blank to keep): ")
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) != "" {
		date, perr := core.ParseDate(line)
		if perr != nil {
			c.println(msgInvalidDate)
			return nil
		}
		if !date.Equal(current.Date) {
			patch.Date = &date
		}
	}

	if patch.IsEmpty() {
		c.println("\n" + msgNothingToUpdate)
		return nil
	}

	res := c.cache.Update(ctx, current.ID, patch)
	c.report(res, "// Expense updated successfully //")
	return nil
}

func (c *Console) delete(ctx context.Context) error {
	current, ok, err := c.selectExpense(ctx, "delete")
	if err != nil || !ok {
		return err
	}
	res := c.cache.Delete(ctx, current.ID)
	c.report(res, "// Expense deleted successfully //")
	return nil
}

func (c *Console) refresh(ctx context.Context) {
	res := c.cache.Load(ctx)
	if !res.Synced {
		c.println("\n" + failureLine(res))
		return
	}
	c.printf("\n// Expenses refreshed: %d loaded //\n", c.cache.Len())
}

func (c *Console) export(ctx context.Context) {
	if c.exporter == nil {
		c.println("\n// Spreadsheet export is not configured //")
		return
	}
	ref, err := c.exporter.Export(ctx, c.cache.View())
	if err != nil {
		c.logger.WarnContext(ctx, "Spreadsheet export failed", log.FieldError, err)
		c.println("\n// Error! Export failed //")
		return
	}
	c.logger.InfoContext(ctx, "Expenses exported", log.FieldCount, c.cache.Len(), log.FieldSheetsRef, ref)
	c.printf("\n// Exported %d expense(s) to %s //\n", c.cache.Len(), ref)
}

func (c *Console) showSnapshot(ctx context.Context) {
	if c.snapshots == nil {
		c.println("\n// Snapshots are not configured //")
		return
	}
	expenses, at, err := c.snapshots.LatestSnapshot(ctx)
	if err != nil {
		c.logger.DebugContext(ctx, "No snapshot to show", log.FieldError, err)
		c.println("\n// No snapshot available //")
		return
	}

	c.printf("\nSnapshot taken %s:\n", at.Local().Format("2006-01-02 15:04:05"))
	if len(expenses) == 0 {
		c.println(msgNoExpenses)
	} else {
		c.printList(expenses)
	}

	ml, ok := c.snapshots.(mutationLister)
	if !ok {
		return
	}
	muts, err := ml.RecentMutations(ctx, recentMutations)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to read mutation journal", log.FieldError, err)
		return
	}
	if len(muts) == 0 {
		return
	}
	c.println("\nRecent changes:")
	for _, m := range muts {
		outcome := "applied"
		if !m.Applied {
			outcome = "rejected"
		}
		c.printf("  %s %s #%d (%d, %s)\n", m.At.Local().Format("2006-01-02 15:04"), m.Op, m.ExpenseID, m.Status, outcome)
	}
}

// report prints the outcome of a mutation. Success is claimed only when the
// service accepted the call.
func (c *Console) report(res cache.Result, success string) {
	if !res.Applied {
		c.println("\n" + failureLine(res))
		return
	}
	c.println("\n" + success)
	if !res.Synced {
		c.println(msgNotReloaded)
	}
}

func failureLine(res cache.Result) string {
	if res.Status != 0 {
		return fmt.Sprintf("// Error! Could not %s expense (status %d) //", verbFor(res.Op), res.Status)
	}
	return fmt.Sprintf("// Error! Could not %s expense, service unreachable //", verbFor(res.Op))
}

func verbFor(op core.Operation) string {
	switch op {
	case core.OpCreate:
		return "add"
	case core.OpList:
		return "load"
	default:
		return string(op)
	}
}

// titleCase trims s and capitalises each word, lowering the rest.
func titleCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

func (c *Console) prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(c.out, label)
	return c.in.ReadLine(ctx)
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
