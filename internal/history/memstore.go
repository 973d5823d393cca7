package history

import (
	"context"
	"time"
)

// MemStore is an in-memory Store backed by a static lookup table. The demo
// uses it to simulate the database a production deployment would query.
//
// Safe for concurrent use: the table is never mutated after construction.
type MemStore struct {
	records map[string]Record
}

// NewMemStore creates a MemStore over the given records, keyed by customer ID.
func NewMemStore(records []Record) *MemStore {
	table := make(map[string]Record, len(records))
	for _, r := range records {
		table[r.CustomerID] = r
	}
	return &MemStore{records: table}
}

// Load implements Store.
func (m *MemStore) Load(_ context.Context, customerID string) (Record, error) {
	r, ok := m.records[customerID]
	if !ok || r.Empty() {
		return Record{}, ErrNotFound
	}
	return r, nil
}

// Ensure MemStore implements Store at compile time.
var _ Store = (*MemStore)(nil)

// DemoCustomerID is the customer the bundled demo history belongs to.
const DemoCustomerID = "demo-customer"

// NewDemoStore returns a MemStore seeded with housing/healthcare scheduling
// conversations containing phonetically difficult proper nouns, the kind a
// recognizer without vocabulary boosting reliably gets wrong.
func NewDemoStore() *MemStore {
	return NewMemStore([]Record{
		{
			CustomerID: DemoCustomerID,
			Conversations: []Conversation{
				{
					ID:   "conv-001",
					Date: time.Date(2025, time.March, 4, 10, 15, 0, 0, time.UTC),
					Text: "Customer Siobhan Kowalczyk called to reschedule her nephrology " +
						"follow-up with Dr. Adaeze Nwosu at the Natchitoches Regional " +
						"Medical Center. She asked whether her Omeprazole prescription " +
						"could be renewed before the visit and confirmed her Medicaid " +
						"coverage is active.",
					Topics: []string{"healthcare", "scheduling"},
				},
				{
					ID:   "conv-002",
					Date: time.Date(2025, time.April, 18, 14, 40, 0, 0, time.UTC),
					Text: "Siobhan asked about the status of her Section 8 housing voucher " +
						"application with the Winston-Salem Housing Authority. Case worker " +
						"Oluwaseun Adeyemi requested updated income verification documents " +
						"and mentioned the LIHEAP weatherization program as an option.",
					Topics: []string{"housing"},
				},
				{
					ID:   "conv-003",
					Date: time.Date(2025, time.May, 2, 9, 5, 0, 0, time.UTC),
					Text: "Follow-up call about transportation to the dialysis appointment. " +
						"The visiting nurse, Niamh Brzezinski, will coordinate with the " +
						"home health aide. Customer also asked to confirm the Metformin " +
						"dosage change discussed with Dr. Nwosu.",
					Topics: []string{"healthcare", "transportation"},
				},
			},
		},
	})
}
