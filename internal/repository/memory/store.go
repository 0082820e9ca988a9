// Package memory хранит состояние движка в памяти процесса.
// Используется в демонстрационном режиме без базы данных и в тестах сервисов.
//
// Каждая транзакция копирует все состояние под общим мьютексом, поэтому стоимость
// записи растет с объемом данных, а транзакции выполняются строго по очереди.
// Для рабочей нагрузки используется хранилище PostgreSQL.
package memory

import (
	"context"
	"sync"

	"github.com/avc/laundry-loyalty/internal/clock"
	"github.com/avc/laundry-loyalty/internal/domain"
)

type birthdayKey struct {
	customerID int64
	ruleID     int64
	year       int
}

// state все таблицы хранилища
type state struct {
	customers      map[int64]*domain.Customer
	services       map[int64]*domain.Service
	orders         map[int64]*domain.Order
	lines          map[int64]*domain.OrderLine
	history        []*domain.StatusChange
	counters       map[string]int
	accounts       map[int64]*domain.LoyaltyAccount
	transactions   []*domain.LoyaltyTransaction
	rules          map[int64]*domain.LoyaltyRule
	referrals      map[int64]*domain.Referral
	rewardEvents   map[int64]*domain.RewardEvent
	birthdayGrants map[birthdayKey]struct{}

	lastID int64
}

func newState() *state {
	return &state{
		customers:      make(map[int64]*domain.Customer),
		services:       make(map[int64]*domain.Service),
		orders:         make(map[int64]*domain.Order),
		lines:          make(map[int64]*domain.OrderLine),
		counters:       make(map[string]int),
		accounts:       make(map[int64]*domain.LoyaltyAccount),
		rules:          make(map[int64]*domain.LoyaltyRule),
		referrals:      make(map[int64]*domain.Referral),
		rewardEvents:   make(map[int64]*domain.RewardEvent),
		birthdayGrants: make(map[birthdayKey]struct{}),
	}
}

// nextID выдает идентификаторы, общие для всех таблиц
func (st *state) nextID() int64 {
	st.lastID++
	return st.lastID
}

func (st *state) clone() *state {
	c := newState()
	c.lastID = st.lastID
	for k, v := range st.customers {
		c.customers[k] = copyCustomer(v)
	}
	for k, v := range st.services {
		s := *v
		c.services[k] = &s
	}
	for k, v := range st.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range st.lines {
		l := *v
		c.lines[k] = &l
	}
	c.history = make([]*domain.StatusChange, len(st.history))
	for i, v := range st.history {
		h := *v
		c.history[i] = &h
	}
	for k, v := range st.counters {
		c.counters[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = copyAccount(v)
	}
	c.transactions = make([]*domain.LoyaltyTransaction, len(st.transactions))
	for i, v := range st.transactions {
		c.transactions[i] = copyTransaction(v)
	}
	for k, v := range st.rules {
		r := *v
		c.rules[k] = &r
	}
	for k, v := range st.referrals {
		c.referrals[k] = copyReferral(v)
	}
	for k, v := range st.rewardEvents {
		c.rewardEvents[k] = copyRewardEvent(v)
	}
	for k := range st.birthdayGrants {
		c.birthdayGrants[k] = struct{}{}
	}
	return c
}

// db общее состояние репозиториев одного Store
type db struct {
	mu    *sync.Mutex
	st    *state
	inTx  bool
	clock clock.Clock
}

// run выполняет fn над состоянием. Вне транзакции берет блокировку хранилища.
func (d *db) run(fn func(st *state) error) error {
	if d.inTx {
		return fn(d.st)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.st)
}

// Store реализует domain.Store в памяти.
// Транзакция удерживает блокировку хранилища и работает с копией состояния,
// которая заменяет основное состояние только при успешном завершении.
type Store struct {
	db *db
}

// NewStore создает пустое хранилище
func NewStore(clk clock.Clock) *Store {
	return &Store{db: &db{mu: &sync.Mutex{}, st: newState(), clock: clk}}
}

func (s *Store) Orders() domain.OrderRepository             { return &orderRepository{db: s.db} }
func (s *Store) Catalog() domain.CatalogRepository          { return &catalogRepository{db: s.db} }
func (s *Store) Customers() domain.CustomerRepository       { return &customerRepository{db: s.db} }
func (s *Store) Loyalty() domain.LoyaltyRepository          { return &loyaltyRepository{db: s.db} }
func (s *Store) Rules() domain.RuleRepository               { return &ruleRepository{db: s.db} }
func (s *Store) Referrals() domain.ReferralRepository       { return &referralRepository{db: s.db} }
func (s *Store) RewardEvents() domain.RewardEventRepository { return &rewardEventRepository{db: s.db} }

// WithinTx выполняет fn атомарно. Вложенный вызов использует текущую транзакцию.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	if s.db.inTx {
		return fn(ctx, s)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.db.st.clone()
	tx := &Store{db: &db{mu: s.db.mu, st: working, inTx: true, clock: s.db.clock}}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.db.st = working
	return nil
}

// Ping всегда успешен
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// AddCustomer добавляет клиента. Клиенты ведутся вне движка, метод нужен для демо-данных.
func (s *Store) AddCustomer(customer *domain.Customer) *domain.Customer {
	var added *domain.Customer
	_ = s.db.run(func(st *state) error {
		c := copyCustomer(customer)
		c.ID = st.nextID()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.db.clock.Now()
		}
		st.customers[c.ID] = c
		added = copyCustomer(c)
		return nil
	})
	return added
}

// AddService добавляет услугу в прайс-лист
func (s *Store) AddService(service *domain.Service) *domain.Service {
	var added *domain.Service
	_ = s.db.run(func(st *state) error {
		svc := *service
		svc.ID = st.nextID()
		st.services[svc.ID] = &svc
		cp := svc
		added = &cp
		return nil
	})
	return added
}

func copyCustomer(c *domain.Customer) *domain.Customer {
	cp := *c
	if c.DateOfBirth != nil {
		dob := *c.DateOfBirth
		cp.DateOfBirth = &dob
	}
	return &cp
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Lines = nil
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		cp.CompletedAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	return &cp
}

func copyAccount(a *domain.LoyaltyAccount) *domain.LoyaltyAccount {
	cp := *a
	if a.TierExpiry != nil {
		t := *a.TierExpiry
		cp.TierExpiry = &t
	}
	return &cp
}

func copyTransaction(tx *domain.LoyaltyTransaction) *domain.LoyaltyTransaction {
	cp := *tx
	cp.OrderID = copyID(tx.OrderID)
	cp.RuleID = copyID(tx.RuleID)
	return &cp
}

func copyReferral(r *domain.Referral) *domain.Referral {
	cp := *r
	cp.OrderID = copyID(r.OrderID)
	return &cp
}

func copyRewardEvent(e *domain.RewardEvent) *domain.RewardEvent {
	cp := *e
	if e.ProcessedAt != nil {
		t := *e.ProcessedAt
		cp.ProcessedAt = &t
	}
	return &cp
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
