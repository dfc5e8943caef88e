package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/rover/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	wheelBaudRate  = 1_000_000
	wiggleVelocity = 300
	wiggleTime     = 700 * time.Millisecond
)

type SetupCommand struct {
	Speed float64 `long:"speed" default:"100" description:"Drive speed in percent of full wheel speed"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Rover Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━"))
	fmt.Println()

	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Drive.Speed = c.Speed

	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}
	ports = usablePorts(ports)
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		fmt.Println("Make sure the wheel bus and the sensor board are connected.")
		os.Exit(1)
	}

	// Step 1: find the wheels
	fmt.Println("Scanning for the wheel servos...")
	fmt.Println()
	bus := findWheelBus(ports)
	if bus == nil {
		fmt.Println("No bus with wheel servos 1 and 2 found.")
		fmt.Println("Make sure the wheels are powered on.")
		os.Exit(1)
	}
	cfg.Drive.Port = bus.port
	cfg.Drive.BaudRate = wheelBaudRate

	// Step 2: identify each wheel
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Identifying Wheels ━━━"))
	fmt.Println()
	cfg.Drive.Wheels = identifyWheels(bus)
	bus.bus.Close()

	if err := cfg.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	// Step 3: pick the sensor board among the remaining ports
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Sensor Board ━━━"))
	fmt.Println()
	cfg.Sensors.Port = chooseSensorPort(ports, bus.port, cfg.Sensors.Port, cfg.Sensors.BaudRate)

	if err := cfg.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Println(renderSummary(cfg))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Drive with: " + headerStyle.Render("rover drive"))

	return nil
}

func usablePorts(ports []string) []string {
	var out []string
	for _, p := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		out = append(out, p)
	}
	return out
}

type wheelBus struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func findWheelBus(ports []string) *wheelBus {
	for _, port := range ports {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)

		bus, err := feetech.NewBus(feetech.BusConfig{
			Port:     port,
			BaudRate: wheelBaudRate,
			Protocol: feetech.ProtocolSTS,
			Timeout:  100 * time.Millisecond,
		})
		if err != nil {
			cancel()
			continue
		}

		servos, err := bus.Scan(ctx, 1, 2)
		cancel()
		if err != nil || !isWheelPair(servos) {
			bus.Close()
			continue
		}

		fmt.Printf("  Found wheel servos on %s\n", port)
		return &wheelBus{port: port, servos: servos, bus: bus}
	}
	return nil
}

func isWheelPair(servos []feetech.FoundServo) bool {
	if len(servos) != 2 {
		return false
	}
	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}
	return ids[1] && ids[2]
}

// identifyWheels wiggles each servo and asks which wheel moved and which way
// it rolled. Unanswered wheels keep their default calibration.
func identifyWheels(wb *wheelBus) robot.Calibration {
	cal := robot.DefaultCalibration()
	assigned := make(map[robot.WheelName]bool)

	for _, found := range wb.servos {
		name, forward, ok := identifyWheelWithWiggle(wb, found, assigned)
		if !ok {
			continue
		}
		wc := cal[name]
		wc.ID = found.ID
		wc.DriveMode = 0
		if !forward {
			wc.DriveMode = 1
		}
		cal[name] = wc
		assigned[name] = true
	}

	// Both wheels on the same ID would drive one servo twice.
	if cal[robot.LeftWheel].ID == cal[robot.RightWheel].ID {
		fmt.Println("Both wheels were given the same servo, keeping the defaults.")
		return robot.DefaultCalibration()
	}
	return cal
}

func identifyWheelWithWiggle(wb *wheelBus, found feetech.FoundServo, assigned map[robot.WheelName]bool) (robot.WheelName, bool, bool) {
	ctx := context.Background()
	servo := feetech.NewServo(wb.bus, found.ID, found.Model)

	// Torque must be off to change mode
	if err := servo.Disable(ctx); err != nil {
		fmt.Printf("  Error disabling servo: %v\n", err)
		return "", false, false
	}
	if err := servo.SetOperatingMode(ctx, feetech.ModeVelocity); err != nil {
		fmt.Printf("  Error setting wheel mode: %v\n", err)
		return "", false, false
	}
	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo: %v\n", err)
		return "", false, false
	}

	fmt.Printf("\n  Turning servo %d...\n", found.ID)

	// A short slow turn in the positive direction.
	servo.SetVelocity(ctx, wiggleVelocity)
	time.Sleep(wiggleTime)
	servo.SetVelocity(ctx, 0)
	time.Sleep(200 * time.Millisecond)

	servo.Disable(ctx)

	var options []huh.Option[string]
	for _, name := range robot.AllWheels() {
		if !assigned[name] {
			options = append(options, huh.NewOption(strings.Title(string(name))+" wheel", string(name)))
		}
	}
	options = append(options, huh.NewOption("Skip this servo", "skip"))

	var wheel string
	direction := "forward"
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which wheel is servo %d?", found.ID)).
				Description("The wheel that just turned").
				Options(options...).
				Value(&wheel),
			huh.NewSelect[string]().
				Title("Which way did it roll first?").
				Options(
					huh.NewOption("Forward", "forward"),
					huh.NewOption("Backward", "backward"),
				).
				Value(&direction),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	if wheel == "skip" {
		return "", false, false
	}
	return robot.WheelName(wheel), direction == "forward", true
}

func chooseSensorPort(ports []string, wheelPort, current string, baud int) string {
	var options []huh.Option[string]
	for _, p := range ports {
		if p == wheelPort {
			continue
		}
		options = append(options, huh.NewOption(p, p))
	}
	if len(options) == 0 {
		fmt.Println("No port left for the sensor board, use 'rover drive --sim' to try without it.")
		return current
	}
	options = append(options, huh.NewOption("None for now", ""))

	port := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port is the sensor board on?").
				Description(fmt.Sprintf("It streams distance frames at %d baud", baud)).
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return port
}

func renderSummary(cfg *robot.Config) string {
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableNameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := [][]string{}
	for _, name := range robot.AllWheels() {
		wc := cfg.Drive.Wheels[name]
		mode := "normal"
		if wc.DriveMode != 0 {
			mode = "mirrored"
		}
		rows = append(rows, []string{string(name) + " wheel", cfg.Drive.Port, fmt.Sprintf("servo %d, %s", wc.ID, mode)})
	}
	sensorPort := cfg.Sensors.Port
	if sensorPort == "" {
		sensorPort = "-"
	}
	rows = append(rows, []string{"sensors", sensorPort, fmt.Sprintf("%d baud", cfg.Sensors.BaudRate)})

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Part", "Port", "Details").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 0 {
				return tableNameStyle
			}
			return tableCellStyle
		})
	return t.Render()
}
