package bom

import (
	"context"

	"imalat-backend/internal/apperror"
)

// CheckNewEdge: parent -> child satırı eklenirse döngü oluşur mu?
// child'dan aşağı inip parent'a ulaşılabiliyorsa döngü vardır.
func CheckNewEdge(ctx context.Context, src EdgeSource, parentID, childID uint) error {
	if parentID == childID {
		return &apperror.CircularReferenceError{ItemID: parentID, Path: []uint{parentID, childID}}
	}

	// cameFrom: ziyaret edilen kalem -> ona ulaştığımız üst kalem
	cameFrom := map[uint]uint{childID: 0}
	stack := []uint{childID}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		edges, err := src.ActiveChildren(ctx, current)
		if err != nil {
			return err
		}
		for _, e := range edges {
			next := e.ChildItemID
			if next == parentID {
				return &apperror.CircularReferenceError{
					ItemID: parentID,
					Path:   append([]uint{parentID}, trace(cameFrom, current, childID, parentID)...),
				}
			}
			if _, seen := cameFrom[next]; seen {
				continue
			}
			cameFrom[next] = current
			stack = append(stack, next)
		}
	}
	return nil
}

// trace: child'dan current'a giden yolu çıkarır ve sona parent'ı ekler.
func trace(cameFrom map[uint]uint, current, childID, parentID uint) []uint {
	rev := []uint{current}
	for current != childID {
		current = cameFrom[current]
		rev = append(rev, current)
	}
	path := make([]uint, 0, len(rev)+1)
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return append(path, parentID)
}
