package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	notify "github.com/bitly/go-notify"
	"github.com/ttacon/chalk"

	"github.com/simarena/simarena/common/timer"
	"github.com/simarena/simarena/common/utils"
	"github.com/simarena/simarena/config"
	"github.com/simarena/simarena/protocol"
	"github.com/simarena/simarena/simserver"
)

func main() {
	setupPath := flag.String("setup", "", "Path to a YAML simulator setup; built-in division A field if empty")
	preset := flag.String("realism", "realistic", "Realism preset (none|realistic)")
	scaling := flag.Float64("scaling", 1.0, "Time scaling factor")
	seed := flag.Uint("seed", 0, "PRNG seed")
	robots := flag.Int("robots", 6, "Robots per team")

	flag.Parse()

	log.Println("Simarena Server v0.1")

	setup := config.DefaultSetup()
	if *setupPath != "" {
		loaded, err := config.LoadSetup(*setupPath)
		if err != nil {
			utils.FailWith(err)
		}
		setup = *loaded
	}

	realism := config.RealismPreset(*preset)
	utils.Assert(realism != nil, "unknown realism preset "+*preset)

	tm := timer.NewTimer()
	sim := simserver.NewSimulator(tm, setup, false)
	sim.SeedPRNG(uint32(*seed))

	packets := 0
	responses := 0
	sim.Events().GotPacket = func(data []byte, receiveTime int64, source string) {
		packets++
		if packets%1000 == 0 {
			fmt.Print(chalk.Cyan)
			log.Println("-- MONITORING --", packets, "vision packets,", responses, "radio responses", chalk.Reset)
		}
	}
	sim.Events().SendRadioResponses = func(batch []protocol.RadioResponse) {
		responses += len(batch)
	}
	sim.Events().SendSSLSimError = func(errors []*protocol.SimulatorError, source simserver.ErrorSource) {
		fmt.Print(chalk.Red)
		for _, simError := range errors {
			log.Println("simulator error", source.String(), simError.Code, simError.Message)
		}
		fmt.Print(chalk.Reset)
	}

	sim.Start()

	enable := true
	sim.HandleCommand(&protocol.Command{
		Simulator: &protocol.CommandSimulator{
			Enable:        &enable,
			RealismConfig: realism,
		},
	})

	blue, yellow := defaultTeams(*robots)
	sim.HandleCommand(&protocol.Command{SetTeamBlue: blue, SetTeamYellow: yellow})

	sim.SetScaling(*scaling)

	stopped := make(chan interface{})
	notify.Start(simserver.StopTickingTopic, stopped)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	fmt.Print(chalk.Green)
	log.Println("simulator running; ctrl-c to stop", chalk.Reset)

	<-interrupt
	sim.Stop()
	<-stopped

	log.Println("server::Teardown()")
}

func defaultTeams(count int) (*protocol.TeamSpec, *protocol.TeamSpec) {
	blue := &protocol.TeamSpec{}
	yellow := &protocol.TeamSpec{}
	for i := 0; i < count; i++ {
		specs := protocol.RobotSpecs{
			ID:              uint32(i),
			Generation:      3,
			Radius:          0.09,
			Height:          0.15,
			Mass:            2.3,
			DribblerWidth:   0.07,
			ShootLinearMax:  6.5,
			ShootChipMax:    3.0,
			VelocityMax:     3.5,
			AngularMax:      6.0,
			AccelerationMax: 3.0,
		}
		blue.Robots = append(blue.Robots, specs)
		yellow.Robots = append(yellow.Robots, specs)
	}
	return blue, yellow
}
