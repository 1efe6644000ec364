package chathub

// Test-only accessors.

func (m *ManagerService) IsRegistered(connID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.clients[connID]
	return ok
}

func (o *Occupancy) Count(roomID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.rooms[roomID])
}

func (o *Occupancy) Contains(roomID, connID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.rooms[roomID][connID]
	return ok
}
