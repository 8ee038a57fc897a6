package types

// MemoryCategory classifies an extracted memory
type MemoryCategory string

const (
	MemoryCategoryPreference   MemoryCategory = "preference"
	MemoryCategoryFact         MemoryCategory = "fact"
	MemoryCategoryTask         MemoryCategory = "task"
	MemoryCategoryReminder     MemoryCategory = "reminder"
	MemoryCategoryRelationship MemoryCategory = "relationship"
	MemoryCategoryOther        MemoryCategory = "other"
)

// AllMemoryCategories returns all valid memory categories
func AllMemoryCategories() []MemoryCategory {
	return []MemoryCategory{
		MemoryCategoryPreference,
		MemoryCategoryFact,
		MemoryCategoryTask,
		MemoryCategoryReminder,
		MemoryCategoryRelationship,
		MemoryCategoryOther,
	}
}

// IsValid checks if the memory category is valid
func (c MemoryCategory) IsValid() bool {
	switch c {
	case MemoryCategoryPreference,
		MemoryCategoryFact,
		MemoryCategoryTask,
		MemoryCategoryReminder,
		MemoryCategoryRelationship,
		MemoryCategoryOther:
		return true
	default:
		return false
	}
}

// String returns the string representation of the memory category
func (c MemoryCategory) String() string {
	return string(c)
}

// Normalize returns the category, mapping unknown values to
// MemoryCategoryOther. The LLM occasionally invents categories, which must
// never fail a whole extraction batch.
func (c MemoryCategory) Normalize() MemoryCategory {
	if !c.IsValid() {
		return MemoryCategoryOther
	}
	return c
}
