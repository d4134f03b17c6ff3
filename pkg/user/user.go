package user

// User identifies the calendar owner a request acts on behalf of. It is
// established by the fronting auth service and propagated on the request
// context; this service never authenticates users itself.
type User struct {
	Uid         string
	DisplayName string
}
