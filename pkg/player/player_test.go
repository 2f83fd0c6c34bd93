package player

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Reinitialize(t *testing.T) {
	t.Parallel()
	d := New("Ace")
	d.HasSpawned = true
	d.Position = Vec3{X: 1, Y: 2, Z: 3}
	d.Rotation = Vec3{Y: 90}
	d.Build = Build{Frame: "scout", Weapons: []string{"rifle"}}
	d.Kills = 4

	got := Reinitialize(d)
	require.Equal(t, Data{
		Name:  "Ace",
		Build: Build{Frame: "scout", Weapons: []string{"rifle"}},
		Kills: 4,
	}, got)
}
