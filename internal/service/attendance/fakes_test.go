package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/company"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/device"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/evidence"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/geofence"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
)

// memStore backs both record and raw event repositories. Its tx runner
// snapshots state and restores it when the callback fails.
type memStore struct {
	mu      sync.Mutex
	txMu    sync.Mutex
	records map[string]attendance.Record
	raw     map[string]attendance.RawEvent
	seq     int
}

func newMemStore() *memStore {
	return &memStore{records: map[string]attendance.Record{}, raw: map[string]attendance.RawEvent{}}
}

func (m *memStore) Do(ctx context.Context, fn func(context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	records := make(map[string]attendance.Record, len(m.records))
	for k, v := range m.records {
		records[k] = v
	}
	raw := make(map[string]attendance.RawEvent, len(m.raw))
	for k, v := range m.raw {
		raw[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.records, m.raw = records, raw
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) GetOpen(ctx context.Context, companyID, employeeID string) (*attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.EmployeeID == employeeID && r.IsOpen() {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *memStore) Create(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.records {
		if other.EmployeeID == r.EmployeeID && other.IsOpen() {
			return attendance.Record{}, attendance.ErrOpenShiftExists
		}
	}
	m.seq++
	r.ID = fmt.Sprintf("rec-%03d", m.seq)
	m.records[r.ID] = r
	return r, nil
}

func (m *memStore) Close(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[r.ID]
	if !ok || !cur.IsOpen() {
		return attendance.Record{}, attendance.ErrNoOpenShift
	}
	m.records[r.ID] = r
	return r, nil
}

func (m *memStore) GetByID(ctx context.Context, id, companyID string) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	return r, nil
}

func (m *memStore) ListByClockIn(ctx context.Context, companyID, employeeID string, from, to time.Time) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.Record
	for _, r := range m.records {
		if r.EmployeeID == employeeID && !r.ClockIn.Before(from) && r.ClockIn.Before(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClockIn.Before(out[j].ClockIn) })
	return out, nil
}

func (m *memStore) ListStaleOpen(ctx context.Context, cutoff time.Time) ([]attendance.Record, error) {
	return nil, nil
}

func (m *memStore) openCount(employeeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.EmployeeID == employeeID && r.IsOpen() {
			n++
		}
	}
	return n
}

func (m *memStore) rawEvents() attendance.RawEventRepository { return memRaw{m} }

type memRaw struct{ m *memStore }

func (r memRaw) Insert(ctx context.Context, e attendance.RawEvent) (bool, attendance.RawEvent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, prior := range r.m.raw {
		if prior.EmployeeID == e.EmployeeID && prior.EventType == e.EventType &&
			prior.OccurredAt.Equal(e.OccurredAt) && prior.SourceKey == e.SourceKey {
			return false, prior, nil
		}
	}
	r.m.raw[e.ID] = e
	return true, e, nil
}

func (r memRaw) AttachRecord(ctx context.Context, id, recordID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e := r.m.raw[id]
	e.RecordID = &recordID
	r.m.raw[id] = e
	return nil
}

func (r memRaw) Seen(ctx context.Context, companyID, employeeID, sourceKey string, occurredAt time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, prior := range r.m.raw {
		if prior.EmployeeID == employeeID && prior.SourceKey == sourceKey && prior.OccurredAt.Equal(occurredAt) {
			return true, nil
		}
	}
	return false, nil
}

type fakeDevices struct {
	mu      sync.Mutex
	devices map[string]device.Device
	touched []string
}

func (f *fakeDevices) GetByID(ctx context.Context, id string) (device.Device, error) {
	d, ok := f.devices[id]
	if !ok {
		return device.Device{}, device.ErrDeviceNotFound
	}
	return d, nil
}

func (f *fakeDevices) ListActiveByKind(ctx context.Context, kind device.Kind) ([]device.Device, error) {
	var out []device.Device
	for _, d := range f.devices {
		if d.Kind == kind && d.IsActive() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDevices) TouchLastSeen(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

type fakeEmployees struct {
	employees map[string]employee.Employee
	// syncIDs maps device id + "/" + sync id to an employee id.
	syncIDs map[string]string
}

func (f *fakeEmployees) GetByID(ctx context.Context, id, companyID string) (employee.Employee, error) {
	e, ok := f.employees[id]
	if !ok || e.CompanyID != companyID {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (f *fakeEmployees) GetBySyncID(ctx context.Context, companyID, deviceID, syncID string) (employee.Employee, error) {
	if id, ok := f.syncIDs[deviceID+"/"+syncID]; ok {
		return f.GetByID(ctx, id, companyID)
	}
	for _, e := range f.employees {
		if e.CompanyID == companyID && e.EmployeeCode == syncID {
			return e, nil
		}
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (f *fakeEmployees) ListActiveIDs(ctx context.Context, companyID string) ([]string, error) {
	var ids []string
	for id, e := range f.employees {
		if e.CompanyID == companyID && e.IsActive() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type fakeCompanies struct{ tz string }

func (f fakeCompanies) GetByID(ctx context.Context, id string) (company.Company, error) {
	return company.Company{ID: id, Timezone: f.tz}, nil
}

func (f fakeCompanies) ListIDs(ctx context.Context) ([]string, error) {
	return []string{"co-1"}, nil
}

type fakeGeofence struct {
	geofence.GeofenceService
	err   error
	calls int
}

func (f *fakeGeofence) Authorize(ctx context.Context, companyID, employeeID string, reading *geofence.Reading, at time.Time) (geofence.Decision, error) {
	f.calls++
	return geofence.Decision{}, f.err
}

type fakeResolver struct {
	resolved *shift.Resolved
}

func (f fakeResolver) Resolve(ctx context.Context, companyID, employeeID string, date time.Time) (shift.Resolved, error) {
	if f.resolved == nil {
		return shift.Resolved{}, shift.ErrNoShiftConfigured
	}
	return *f.resolved, nil
}

type fakeEvidence struct {
	evidence.EvidenceService
	verifyErr error
	recorded  []string
}

func (f *fakeEvidence) Verify(ctx context.Context, c evidence.Capture) (string, error) {
	if f.verifyErr != nil {
		return "", f.verifyErr
	}
	return evidence.HashHex(c.Image), nil
}

func (f *fakeEvidence) Record(ctx context.Context, recordID string, event evidence.EventType, c evidence.Capture, hash string) (evidence.Item, error) {
	f.recorded = append(f.recorded, recordID+":"+string(event))
	return evidence.Item{ID: "ev-1", SHA256: hash}, nil
}

type fakeInvalidator struct {
	mu    sync.Mutex
	dates []string
	locks int
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, companyID, employeeID string, date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, employeeID+"@"+date.Format("2006-01-02"))
	return nil
}

func (f *fakeInvalidator) LockEmployee(ctx context.Context, companyID, employeeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks++
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	dirty []string
}

func (f *fakeNotifier) NotifyDirty(ctx context.Context, companyID, employeeID string, date time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty = append(f.dirty, employeeID+"@"+date.Format("2006-01-02"))
}

type broadcast struct {
	employeeID string
	open       bool
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (f *fakeBroadcaster) BroadcastOpenShift(companyID, employeeID string, open bool, record *attendance.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, broadcast{employeeID: employeeID, open: open})
}

func principal(role user.Role, employeeID *string) auth.Principal {
	return auth.Principal{CompanyID: "co-1", UserID: "u-1", EmployeeID: employeeID, Role: role}
}
