package conversation

import (
	"slices"
	"strings"

	"github.com/edubridge/edubridge-backend/internal/models"
)

// Timeline держит сообщения в неубывающем порядке времени независимо
// от порядка прихода. Повторы по ID отбрасываются. Не потокобезопасен.
type Timeline struct {
	msgs []models.Message
	seen map[string]struct{}
}

func NewTimeline(initial ...models.Message) *Timeline {
	t := &Timeline{seen: make(map[string]struct{})}
	t.Add(initial...)
	return t
}

func byTime(a, b models.Message) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// Add вставляет сообщения на свои места; вернёт true, если что-то добавилось.
func (t *Timeline) Add(ms ...models.Message) bool {
	added := false
	for _, m := range ms {
		if _, dup := t.seen[m.ID]; dup {
			continue
		}
		t.seen[m.ID] = struct{}{}
		i, _ := slices.BinarySearchFunc(t.msgs, m, byTime)
		t.msgs = slices.Insert(t.msgs, i, m)
		added = true
	}
	return added
}

func (t *Timeline) Len() int { return len(t.msgs) }

// Snapshot: копия упорядоченного списка.
func (t *Timeline) Snapshot() []models.Message {
	out := make([]models.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}
