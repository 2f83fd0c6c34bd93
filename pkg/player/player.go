// Package player holds the per-player data a host keeps for the length of a
// session, including while the player is briefly disconnected.
package player

type (
	// Vec3 is a position or a set of Euler angles in degrees.
	Vec3 struct {
		X float32 `json:"x"`
		Y float32 `json:"y"`
		Z float32 `json:"z"`
	}

	// Data is the payload stored against a player's persistent identity.
	Data struct {
		// Name is the display name the player connected with.
		Name string

		// Position and Rotation are where the player's mech last was.
		Position Vec3
		Rotation Vec3

		// Build is the player's selected loadout.
		Build Build

		// HasSpawned is set once the player's mech exists in the current round.
		HasSpawned bool

		// Kills, Deaths and Score are running totals for the session.
		Kills  int
		Deaths int
		Score  int
	}

	// Build identifies a loadout: a frame and the weapon in each slot.
	Build struct {
		Frame   string
		Weapons []string
	}
)

// New returns the data for a player who has just joined.
func New(name string) Data {
	return Data{Name: name}
}

// Reinitialize prepares a still-connected player's data for the next round.
// Their mech no longer exists, but name, loadout and totals are kept.
func Reinitialize(d Data) Data {
	d.HasSpawned = false
	d.Position = Vec3{}
	d.Rotation = Vec3{}

	return d
}
