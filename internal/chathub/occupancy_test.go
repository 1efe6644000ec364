package chathub_test

import (
	"fmt"
	"sync"
	"testing"

	"chatroom/backend/internal/chathub"

	"github.com/stretchr/testify/assert"
)

func TestOccupancy_JoinLeave(t *testing.T) {
	occ := chathub.NewOccupancy()

	assert.Equal(t, 1, occ.Join("x", "a"))
	assert.Equal(t, 2, occ.Join("x", "b"))
	assert.Equal(t, 2, occ.Join("x", "b"), "joining twice is a no-op")
	assert.Equal(t, []string{"a", "b"}, occ.MembersOf("x"))

	n, ok := occ.Leave("x", "a")
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	_, ok = occ.Leave("x", "a")
	assert.False(t, ok)
	_, ok = occ.Leave("nowhere", "a")
	assert.False(t, ok)
}

func TestOccupancy_LeaveAll(t *testing.T) {
	occ := chathub.NewOccupancy()
	occ.Join("x", "a")
	occ.Join("x", "b")
	occ.Join("y", "a")

	affected := occ.LeaveAll("a")

	assert.Equal(t, map[string]int{"x": 1, "y": 0}, affected)
	assert.Equal(t, 0, occ.Count("y"))
	assert.Empty(t, occ.MembersOf("y"))
	assert.Empty(t, occ.LeaveAll("a"))
}

func TestOccupancy_ConcurrentJoinLeave(t *testing.T) {
	occ := chathub.NewOccupancy()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			occ.Join("x", conn)
			if i%2 == 0 {
				occ.LeaveAll(conn)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, occ.Count("x"))
	assert.False(t, occ.Contains("x", "c0"))
	assert.True(t, occ.Contains("x", "c1"))
}
