package publish

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/retailops/storesync/internal/db"
	"github.com/retailops/storesync/internal/ingest"
	"github.com/retailops/storesync/internal/types"
)

// CanonicalStore is the slice of the database layer publishing needs. The
// find methods back the linker's fallback for child rows whose parent was
// published or staged by an earlier run.
type CanonicalStore interface {
	UpsertCanonicalOrder(ctx context.Context, o *db.CanonicalOrder) (bool, error)
	ApplyOrderAggregates(ctx context.Context, id int64, pieces int, weightKg float64, services, remarks []string) error
	UpsertCanonicalPayment(ctx context.Context, p *db.CanonicalPayment) (bool, error)
	FindCanonicalByOrderNo(ctx context.Context, costCenter, orderNo string) (*db.CanonicalOrder, error)
	FindStagingByOrderNo(ctx context.Context, storeCode, orderNo string) (*db.StagingOrder, error)
}

// sampleSize caps how many unmatched keys a coverage warning carries.
const sampleSize = 5

// Result summarizes one publish pass for a store.
type Result struct {
	StoreCode        string
	OrdersInserted   int
	OrdersUpdated    int
	PaymentsInserted int
	PaymentsUpdated  int
	DetailsMatched   int
	DetailsTotal     int
	PaymentsMatched  int
	PaymentsTotal    int
	Warnings         []string
}

func (r *Result) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[PUBLISH] %s: %s", r.StoreCode, msg)
	r.Warnings = append(r.Warnings, msg)
}

// Publisher promotes staged rows to the canonical (cost_center, order_no,
// order_date) key and links child rows via order-number variants.
type Publisher struct {
	Store           CanonicalStore
	CoverageMinimum float64
	Verbose         bool
}

// linker resolves child-row order numbers to canonical orders for one
// publish pass. It checks this run's published set first, then canonical
// rows from earlier runs, then staged rows whose publish never completed
// (which it promotes on the spot). Hits and misses are cached per key.
type linker struct {
	p          *Publisher
	storeCode  string
	costCenter string
	index      map[string]*db.CanonicalOrder
	missing    map[string]bool
	res        *Result
}

func (l *linker) add(o *db.CanonicalOrder) {
	for _, v := range KeyVariants(o.OrderNo, l.storeCode) {
		if _, taken := l.index[v]; !taken {
			l.index[v] = o
		}
	}
}

func (l *linker) resolve(ctx context.Context, orderNo string) (*db.CanonicalOrder, error) {
	variants := KeyVariants(orderNo, l.storeCode)
	for _, v := range variants {
		if o, ok := l.index[v]; ok {
			return o, nil
		}
	}
	for _, v := range variants {
		if l.missing[v] {
			continue
		}
		o, err := l.p.Store.FindCanonicalByOrderNo(ctx, l.costCenter, v)
		if err != nil {
			return nil, err
		}
		if o != nil {
			l.add(o)
			return o, nil
		}
		s, err := l.p.Store.FindStagingByOrderNo(ctx, l.storeCode, v)
		if err != nil {
			return nil, err
		}
		if s != nil {
			o, err := l.p.promote(ctx, l.costCenter, s, l.res)
			if err != nil {
				return nil, err
			}
			l.add(o)
			return o, nil
		}
		l.missing[v] = true
	}
	return nil, nil
}

// promote publishes one staged order canonically.
func (p *Publisher) promote(ctx context.Context, costCenter string, s *db.StagingOrder, res *Result) (*db.CanonicalOrder, error) {
	o := &db.CanonicalOrder{
		CostCenter:   costCenter,
		OrderNo:      s.OrderNo,
		OrderDate:    s.BusinessDate,
		StoreCode:    s.StoreCode,
		CustomerName: s.CustomerName,
		Mobile:       s.Mobile,
		GrossAmount:  s.GrossAmount,
		Advance:      s.Advance,
		Balance:      s.Balance,
		Status:       s.Status,
		Remarks:      s.Remarks,
	}
	inserted, err := p.Store.UpsertCanonicalOrder(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("failed to publish order %s/%s: %w", costCenter, s.OrderNo, err)
	}
	if inserted {
		res.OrdersInserted++
	} else {
		res.OrdersUpdated++
	}
	return o, nil
}

// Publish upserts every staged order canonically, then joins detail and
// payment rows onto the published set. Each child batch goes through a
// coverage check first: a batch where nothing matches is dropped whole with
// one warning, a batch below the coverage minimum publishes what matched and
// warns, and a healthy batch publishes silently.
func (p *Publisher) Publish(ctx context.Context, storeCode, costCenter string,
	staged []*db.StagingOrder, details []types.OrderDetailRow, payments []types.PaymentRow) (*Result, error) {

	res := &Result{StoreCode: storeCode}
	lk := &linker{
		p:          p,
		storeCode:  storeCode,
		costCenter: costCenter,
		index:      make(map[string]*db.CanonicalOrder, len(staged)),
		missing:    make(map[string]bool),
		res:        res,
	}

	for _, s := range staged {
		o, err := p.promote(ctx, costCenter, s, res)
		if err != nil {
			return res, err
		}
		lk.add(o)
	}

	if err := p.publishDetails(ctx, lk, details, res); err != nil {
		return res, err
	}
	if err := p.publishPayments(ctx, lk, costCenter, payments, res); err != nil {
		return res, err
	}

	if p.Verbose {
		log.Printf("[PUBLISH] %s: %d orders inserted, %d updated, %d/%d details matched, %d/%d payments matched",
			storeCode, res.OrdersInserted, res.OrdersUpdated,
			res.DetailsMatched, res.DetailsTotal, res.PaymentsMatched, res.PaymentsTotal)
	}
	return res, nil
}

// orderAggregate accumulates line items across every detail row matched to
// one canonical order, so a multi-row order publishes one combined total.
type orderAggregate struct {
	order    *db.CanonicalOrder
	pieces   int
	weightKg float64
	services []string
	seenSvc  map[string]bool
	remarks  types.RemarkList
}

func (a *orderAggregate) addItems(items []types.LineItem) {
	for i, it := range items {
		qty := 1
		if it.Quantity != nil {
			if n, err := strconv.Atoi(strings.TrimSpace(*it.Quantity)); err == nil && n > 0 {
				qty = n
			}
		}
		a.pieces += qty
		if it.Weight != nil {
			if w, err := strconv.ParseFloat(strings.TrimSpace(*it.Weight), 64); err == nil {
				a.weightKg += w
			}
		}
		if it.Service != nil {
			s := strings.TrimSpace(*it.Service)
			if s != "" && !a.seenSvc[s] {
				a.seenSvc[s] = true
				a.services = append(a.services, s)
			}
		}
		if it.Name == nil {
			a.remarks = a.remarks.Add("publish", "items", fmt.Sprintf("item %d has no name", i+1))
		}
	}
}

func (p *Publisher) publishDetails(ctx context.Context, lk *linker, details []types.OrderDetailRow, res *Result) error {
	if len(details) == 0 {
		return nil
	}

	byOrder := make(map[int64]*orderAggregate)
	var ordered []*orderAggregate
	var unmatched []string
	for _, d := range details {
		o, err := lk.resolve(ctx, d.OrderCode)
		if err != nil {
			return err
		}
		if o == nil {
			unmatched = append(unmatched, d.OrderCode)
			continue
		}
		res.DetailsMatched++
		agg, ok := byOrder[o.ID]
		if !ok {
			agg = &orderAggregate{order: o, seenSvc: make(map[string]bool)}
			byOrder[o.ID] = agg
			ordered = append(ordered, agg)
		}
		agg.addItems(d.Items)
	}
	res.DetailsTotal = len(details)

	if !p.checkCoverage("detail", res.DetailsTotal, res.DetailsMatched, unmatched, res) {
		return nil
	}

	for _, agg := range ordered {
		sort.Strings(agg.services)
		err := p.Store.ApplyOrderAggregates(ctx, agg.order.ID, agg.pieces, agg.weightKg,
			agg.services, agg.remarks.Strings())
		if err != nil {
			return fmt.Errorf("failed to apply aggregates for %s: %w", agg.order.OrderNo, err)
		}
	}
	return nil
}

func (p *Publisher) publishPayments(ctx context.Context, lk *linker, costCenter string,
	payments []types.PaymentRow, res *Result) error {

	if len(payments) == 0 {
		return nil
	}

	var matched []types.PaymentRow
	var orders []*db.CanonicalOrder
	var unmatched []string
	for _, pay := range payments {
		o, err := lk.resolve(ctx, pay.OrderCode)
		if err != nil {
			return err
		}
		if o == nil {
			unmatched = append(unmatched, pay.OrderCode)
			continue
		}
		matched = append(matched, pay)
		orders = append(orders, o)
	}
	res.PaymentsTotal = len(payments)
	res.PaymentsMatched = len(matched)

	if !p.checkCoverage("payment", res.PaymentsTotal, res.PaymentsMatched, unmatched, res) {
		return nil
	}

	for i, pay := range matched {
		paymentDate, err := ingest.ParseDateLenient(pay.PaymentDate)
		if err != nil {
			res.warn("payment for %s has unparseable date %q; skipped", pay.OrderCode, pay.PaymentDate)
			continue
		}
		amount, err := ingest.ParseAmount(pay.Amount)
		if err != nil {
			res.warn("payment for %s has unparseable amount %q; skipped", pay.OrderCode, pay.Amount)
			continue
		}
		cp := &db.CanonicalPayment{
			CostCenter:  costCenter,
			OrderNo:     orders[i].OrderNo,
			PaymentDate: paymentDate,
			Amount:      amount,
			Mode:        strings.TrimSpace(pay.Mode),
			ReceiptNo:   strings.TrimSpace(pay.ReceiptNo),
		}
		inserted, err := p.Store.UpsertCanonicalPayment(ctx, cp)
		if err != nil {
			return fmt.Errorf("failed to publish payment for %s: %w", pay.OrderCode, err)
		}
		if inserted {
			res.PaymentsInserted++
		} else {
			res.PaymentsUpdated++
		}
	}
	return nil
}

// checkCoverage decides whether a child batch may publish. Returns false
// when the whole batch must be dropped.
func (p *Publisher) checkCoverage(label string, total, matched int, unmatched []string, res *Result) bool {
	if total == 0 {
		return true
	}
	if matched == 0 {
		res.warn("no %s rows matched a published order (0 of %d); batch skipped; sample unmatched: %v",
			label, total, sample(unmatched))
		return false
	}
	ratio := float64(matched) / float64(total)
	if ratio < p.CoverageMinimum {
		res.warn("low %s coverage: %d of %d matched (%.0f%%); sample unmatched: %v",
			label, matched, total, ratio*100, sample(unmatched))
	}
	return true
}

func sample(keys []string) []string {
	if len(keys) > sampleSize {
		return keys[:sampleSize]
	}
	return keys
}
