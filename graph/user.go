package graph

// User is a single record in the mentorship graph.
type User struct {
	// A unique identifier for the user.
	ID int64

	// IDs of the users this user coaches.
	Coaches []int64

	// IDs of the users that coach this user.
	CoachedBy []int64

	// The site version currently assigned to the user.
	Version int64
}

// Neighbors returns the IDs of every user connected to u, in either
// direction.
func (u *User) Neighbors() []int64 {
	out := make([]int64, 0, len(u.Coaches)+len(u.CoachedBy))
	out = append(out, u.Coaches...)
	return append(out, u.CoachedBy...)
}

// UserIterator is implemented by objects that can iterate the graph users.
type UserIterator interface {
	Iterator

	// User returns the currently fetched user object.
	User() *User
}

// BuildUsers converts a mentor -> mentees map into a list of user records
// with both edge lists populated. Users that only appear as mentees receive a
// record with an empty Coaches list. All users are assigned the provided
// version.
func BuildUsers(connections map[int64][]int64, version int64) []*User {
	// Build the mentee -> mentors map.
	reverse := make(map[int64][]int64)
	for mentor, mentees := range connections {
		for _, mentee := range mentees {
			reverse[mentee] = append(reverse[mentee], mentor)
		}
	}

	users := make([]*User, 0, len(connections)+len(reverse))
	for mentor, mentees := range connections {
		users = append(users, &User{
			ID:        mentor,
			Coaches:   append([]int64(nil), mentees...),
			CoachedBy: sortedIDs(reverse[mentor]),
			Version:   version,
		})
	}

	for mentee, mentors := range reverse {
		if _, isMentor := connections[mentee]; isMentor {
			continue
		}
		users = append(users, &User{
			ID:        mentee,
			CoachedBy: sortedIDs(mentors),
			Version:   version,
		})
	}

	return users
}

func sortedIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	return NewIDSet(ids...).IDs()
}
