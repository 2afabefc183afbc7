package coordinator

import "github.com/layzeechat/layzee/pkg/network"

// Crowd denotes some abstraction over list of eager people.
// It is owned by the matchmaker and shares its lock.
type Crowd struct {
	users map[network.Uid]*User
}

func NewCrowd() Crowd { return Crowd{users: map[network.Uid]*User{}} }

func (c *Crowd) add(u *User) { c.users[u.Id] = u }

func (c *Crowd) remove(id network.Uid) *User {
	u := c.users[id]
	delete(c.users, id)
	return u
}

func (c *Crowd) findById(id network.Uid) *User { return c.users[id] }

func (c *Crowd) each(fn func(u *User)) {
	for _, u := range c.users {
		fn(u)
	}
}

func (c *Crowd) Len() int { return len(c.users) }
