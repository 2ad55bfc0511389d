package main

import (
	"github.com/minirdk/minirdk/internal/components"
	"github.com/minirdk/minirdk/internal/resource"
	"github.com/minirdk/minirdk/internal/robot"
)

// buildRobot assembles the component registry. Under emulation everything is
// backed by fakes; the wheeled base shares the two motor handles, so base
// commands are observable through the motors.
func buildRobot(withCamera bool) *robot.Robot {
	r := robot.New()

	m1 := components.NewFakeMotor()
	m2 := components.NewFakeMotor()
	r.Insert(resource.NewComponent(resource.SubtypeMotor, "m1"), robot.MotorHandle(m1))
	r.Insert(resource.NewComponent(resource.SubtypeMotor, "m2"), robot.MotorHandle(m2))

	board := components.NewFakeBoard([]components.AnalogReader{
		components.NewFakeAnalogReader("A1", 10),
		components.NewFakeAnalogReader("A2", 20),
	})
	r.Insert(resource.NewComponent(resource.SubtypeBoard, "b"), robot.BoardHandle(board))

	base := components.NewWheeledBase(m1, m2)
	r.Insert(resource.NewComponent(resource.SubtypeBase, "base"), robot.BaseHandle(base))

	if withCamera {
		r.Insert(resource.NewComponent(resource.SubtypeCamera, "c"),
			robot.CameraHandle(components.NewFakeCamera()))
	}

	return r
}
