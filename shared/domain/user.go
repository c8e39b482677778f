package domain

type User struct {
	Id       UserId
	Username Username
	Admin    bool
}
