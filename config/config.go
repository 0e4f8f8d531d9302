// Package config loads simulator setups (field geometry plus the camera
// set) and named realism presets from YAML files.
package config

import (
	"os"

	bettererrors "github.com/xtuc/better-errors"
	"gopkg.in/yaml.v3"

	"github.com/simarena/simarena/protocol"
)

type cameraFile struct {
	CameraID int     `yaml:"camera_id"`
	X        float64 `yaml:"x"` // meters
	Y        float64 `yaml:"y"`
	Z        float64 `yaml:"z"`
}

type setupFile struct {
	Geometry protocol.Geometry `yaml:"geometry"`
	Cameras  []cameraFile      `yaml:"cameras"`
}

// LoadSetup reads a simulator setup from a YAML file.
func LoadSetup(path string) (*protocol.SimulatorSetup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bettererrors.
			New("could not read simulator setup").
			SetContext("path", path).
			With(bettererrors.New(err.Error()))
	}
	return ParseSetup(data)
}

// ParseSetup parses and validates a YAML setup document.
func ParseSetup(data []byte) (*protocol.SimulatorSetup, error) {
	var file setupFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, bettererrors.
			New("could not parse simulator setup").
			With(bettererrors.New(err.Error()))
	}

	if file.Geometry.FieldWidth <= 0 || file.Geometry.FieldHeight <= 0 {
		return nil, bettererrors.
			New("invalid simulator setup").
			With(bettererrors.New("field dimensions must be positive"))
	}

	setup := &protocol.SimulatorSetup{Geometry: file.Geometry}
	for _, camera := range file.Cameras {
		setup.CameraSetup = append(setup.CameraSetup, protocol.CameraCalibration{
			CameraID:             camera.CameraID,
			FocalLength:          1,
			DerivedCameraWorldTx: camera.X * 1000,
			DerivedCameraWorldTy: camera.Y * 1000,
			DerivedCameraWorldTz: camera.Z * 1000,
		})
	}
	return setup, nil
}

// DefaultSetup is a division A field with four cameras, one per quadrant.
func DefaultSetup() protocol.SimulatorSetup {
	setup := protocol.SimulatorSetup{
		Geometry: protocol.Geometry{
			FieldWidth:    9,
			FieldHeight:   12,
			GoalWidth:     1.2,
			GoalDepth:     0.18,
			GoalHeight:    0.16,
			BoundaryWidth: 0.3,
		},
	}
	positions := [][2]float64{{-2.25, -3}, {2.25, -3}, {-2.25, 3}, {2.25, 3}}
	for i, p := range positions {
		setup.CameraSetup = append(setup.CameraSetup, protocol.CameraCalibration{
			CameraID:             i,
			FocalLength:          1,
			DerivedCameraWorldTx: p[0] * 1000,
			DerivedCameraWorldTy: p[1] * 1000,
			DerivedCameraWorldTz: 4000,
		})
	}
	return setup
}

func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }
func int64Ptr(i int64) *int64     { return &i }

// RealismPreset returns a named realism configuration, or nil for an
// unknown name. "none" disables every imperfection; "realistic"
// approximates a tournament vision setup.
func RealismPreset(name string) *protocol.RealismConfig {
	switch name {
	case "none":
		return &protocol.RealismConfig{
			StddevBallP:             floatPtr(0),
			StddevRobotP:            floatPtr(0),
			StddevRobotPhi:          floatPtr(0),
			StddevBallArea:          floatPtr(0),
			DribblerBallDetections:  floatPtr(0),
			EnableInvisibleBall:     boolPtr(false),
			CameraOverlap:           floatPtr(0.3),
			CameraPositionError:     floatPtr(0),
			ObjectPositionOffset:    floatPtr(0),
			RobotCommandLoss:        floatPtr(0),
			RobotResponseLoss:       floatPtr(0),
			MissingBallDetections:   floatPtr(0),
			MissingRobotDetections:  floatPtr(0),
			VisionDelay:             int64Ptr(0),
			VisionProcessingTime:    int64Ptr(0),
			SimulateDribbling:       boolPtr(false),
			CommandDelay:            int64Ptr(0),
		}
	case "realistic":
		return &protocol.RealismConfig{
			StddevBallP:             floatPtr(0.0018),
			StddevRobotP:            floatPtr(0.0013),
			StddevRobotPhi:          floatPtr(0.01),
			StddevBallArea:          floatPtr(6),
			DribblerBallDetections:  floatPtr(0.1),
			EnableInvisibleBall:     boolPtr(true),
			BallVisibilityThreshold: floatPtr(0.4),
			CameraOverlap:           floatPtr(0.3),
			CameraPositionError:     floatPtr(0.2),
			ObjectPositionOffset:    floatPtr(0.005),
			RobotCommandLoss:        floatPtr(0.03),
			RobotResponseLoss:       floatPtr(0.1),
			MissingBallDetections:   floatPtr(0.02),
			MissingRobotDetections:  floatPtr(0.02),
			VisionDelay:             int64Ptr(35_000_000),
			VisionProcessingTime:    int64Ptr(5_000_000),
			SimulateDribbling:       boolPtr(true),
			CommandDelay:            int64Ptr(30_000_000),
		}
	}
	return nil
}
