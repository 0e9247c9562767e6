package spaced_repetition

import (
	"sort"
	"time"

	"github.com/example/scibot/pkg/models"
)

// MasteryRetention is the retention at which a concept counts as mastered.
const MasteryRetention = 0.8

// RankDue returns at most limit items due at now, most urgent first:
//  1. concepts that have never been reviewed
//  2. concepts with the lowest retention
//  3. concepts that are the most overdue
//
// A non-positive limit returns every due item. The input slice is not reordered.
func RankDue(items []models.KnowledgeItem, now time.Time, limit int) []models.KnowledgeItem {
	var due []models.KnowledgeItem
	for _, item := range items {
		if !item.NextReview.After(now) {
			due = append(due, item)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		newI, newJ := due[i].LastReviewed == nil, due[j].LastReviewed == nil
		if newI != newJ {
			return newI
		}
		if due[i].Retention != due[j].Retention {
			return due[i].Retention < due[j].Retention
		}
		return due[i].NextReview.Before(due[j].NextReview)
	})

	if limit > 0 && len(due) > limit {
		return due[:limit]
	}
	return due
}

// IsMastered reports whether a subject's retention has reached MasteryRetention.
func IsMastered(subject models.ReviewSubject) bool {
	return subject.Retention >= MasteryRetention
}
