package members

import "github.com/wilffren/libronova/pkg/enums"

// MemberFilters narrows member listings.
type MemberFilters struct {
	Status *enums.MemberStatus
}

// RegisterMemberInput carries the fields for a new member.
type RegisterMemberInput struct {
	MemberNumber string
	Name         string
	Email        string
	Phone        *string
	Role         enums.MemberRole
}

// UpdateContactInput edits contact metadata. Nil fields are left unchanged.
type UpdateContactInput struct {
	Name  *string
	Email *string
	Phone *string
}
