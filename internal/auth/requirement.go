package auth

// Requirement is the role requirement gating a request. The set of
// implementations is closed; Authorize handles each one.
type Requirement interface {
	requirement()
}

// None allows every caller, authenticated or not.
type None struct{}

// NeedsAdmin allows administrators only.
type NeedsAdmin struct{}

// NeedsPO allows owners of at least one project.
type NeedsPO struct{}

// NeedsPOOfProject allows owners of the given project.
type NeedsPOOfProject struct {
	ProjectID int64
}

// NeedsMemberOfProject allows any member of the given project.
type NeedsMemberOfProject struct {
	ProjectID int64
}

// NeedsSameMemberOfProject allows the member UserID of ProjectID acting on
// their own membership.
type NeedsSameMemberOfProject struct {
	ProjectID int64
	UserID    int64
}

// NeedsSameUserOrPO allows UserID itself or any project owner.
type NeedsSameUserOrPO struct {
	UserID int64
}

// NeedsSameUser allows UserID only.
type NeedsSameUser struct {
	UserID int64
}

func (None) requirement()                     {}
func (NeedsAdmin) requirement()               {}
func (NeedsPO) requirement()                  {}
func (NeedsPOOfProject) requirement()         {}
func (NeedsMemberOfProject) requirement()     {}
func (NeedsSameMemberOfProject) requirement() {}
func (NeedsSameUserOrPO) requirement()        {}
func (NeedsSameUser) requirement()            {}
