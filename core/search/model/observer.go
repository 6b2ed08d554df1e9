package model

// Observer receives structural and data change notifications. Callbacks run
// on the controller goroutine, synchronously with the mutation.
type Observer interface {
	// RowsInserted reports that rows first..last were inserted below parent.
	RowsInserted(parent ModelIndex, first, last int)

	// RowsRemoved reports that rows first..last were removed below parent.
	RowsRemoved(parent ModelIndex, first, last int)

	// DataChanged reports that the cells between topLeft and bottomRight,
	// which share a parent, may hold new data.
	DataChanged(topLeft, bottomRight ModelIndex)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	OnRowsInserted func(parent ModelIndex, first, last int)
	OnRowsRemoved  func(parent ModelIndex, first, last int)
	OnDataChanged  func(topLeft, bottomRight ModelIndex)
}

func (o ObserverFuncs) RowsInserted(parent ModelIndex, first, last int) {
	if o.OnRowsInserted != nil {
		o.OnRowsInserted(parent, first, last)
	}
}

func (o ObserverFuncs) RowsRemoved(parent ModelIndex, first, last int) {
	if o.OnRowsRemoved != nil {
		o.OnRowsRemoved(parent, first, last)
	}
}

func (o ObserverFuncs) DataChanged(topLeft, bottomRight ModelIndex) {
	if o.OnDataChanged != nil {
		o.OnDataChanged(topLeft, bottomRight)
	}
}

type observerList struct {
	nextID  int
	entries []observerEntry
}

type observerEntry struct {
	id       int
	observer Observer
}

func newObserverList() *observerList {
	return &observerList{}
}

func (l *observerList) add(o Observer) int {
	l.nextID++
	l.entries = append(l.entries, observerEntry{id: l.nextID, observer: o})
	return l.nextID
}

func (l *observerList) remove(id int) {
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *observerList) each(fn func(Observer)) {
	for _, e := range l.entries {
		fn(e.observer)
	}
}

// Subscribe registers o and returns a function that unregisters it.
func (m *Model) Subscribe(o Observer) (unsubscribe func()) {
	id := m.observers.add(o)
	return func() { m.observers.remove(id) }
}

func (m *Model) emitRowsInserted(parent ModelIndex, first, last int) {
	m.observers.each(func(o Observer) { o.RowsInserted(parent, first, last) })
}

func (m *Model) emitRowsRemoved(parent ModelIndex, first, last int) {
	m.observers.each(func(o Observer) { o.RowsRemoved(parent, first, last) })
}

func (m *Model) emitDataChanged(topLeft, bottomRight ModelIndex) {
	m.observers.each(func(o Observer) { o.DataChanged(topLeft, bottomRight) })
}
