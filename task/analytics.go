package task

import (
	"context"

	"taskboard/domain/entity"
	"taskboard/domain/repository"
)

// PriorityBreakdown counts tasks per priority
type PriorityBreakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Analytics summarizes an owner's board. It is computed on read and never stored.
type Analytics struct {
	Total      int                       `json:"total"`
	Completed  int                       `json:"completed"`
	Pending    int                       `json:"pending"`
	InProgress int                       `json:"inProgress"`
	ByStatus   map[entity.TaskStatus]int `json:"byStatus"`
	ByPriority PriorityBreakdown         `json:"byPriority"`
	ByCategory map[string]int            `json:"byCategory"`
}

// Summarize aggregates counts over a task list. Tasks without a category are not grouped.
func Summarize(tasks []*entity.Task) *Analytics {
	a := &Analytics{
		Total: len(tasks),
		ByStatus: map[entity.TaskStatus]int{
			entity.TaskStatusPending:    0,
			entity.TaskStatusInProgress: 0,
			entity.TaskStatusCompleted:  0,
		},
		ByCategory: map[string]int{},
	}

	for _, t := range tasks {
		a.ByStatus[t.Status]++

		switch t.Priority {
		case entity.PriorityHigh:
			a.ByPriority.High++
		case entity.PriorityMedium:
			a.ByPriority.Medium++
		case entity.PriorityLow:
			a.ByPriority.Low++
		}

		if t.Category != "" {
			a.ByCategory[t.Category]++
		}
	}

	a.Completed = a.ByStatus[entity.TaskStatusCompleted]
	a.Pending = a.ByStatus[entity.TaskStatusPending]
	a.InProgress = a.ByStatus[entity.TaskStatusInProgress]
	return a
}

// Analytics computes the board summary for an owner
func (s *Service) Analytics(ctx context.Context, ownerID string) (*Analytics, error) {
	tasks, err := s.List(ctx, ownerID, repository.TaskFilter{})
	if err != nil {
		return nil, err
	}
	return Summarize(tasks), nil
}
