package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/config"
	"github.com/evanphx/tutorkernel/kernel"
	clog "github.com/evanphx/tutorkernel/log"
	"github.com/evanphx/tutorkernel/syscalls"
	"github.com/evanphx/tutorkernel/user/apps"
	"github.com/spf13/pflag"
)

var (
	fConfig = pflag.StringP("config", "c", "", "YAML file with the kernel configuration")
	fTrace  = pflag.BoolP("trace", "t", false, "log at trace level")
	fDump   = pflag.Bool("dump", false, "dump each task's final accounting")
	fList   = pflag.BoolP("list", "l", false, "list the built-in apps and exit")
)

type taskDump struct {
	Pid          int
	Name         string
	Status       string
	ExitCode     int
	RunningTime  uint64
	SyscallTimes map[string]uint32
}

func dump(k *kernel.Kernel, t *kernel.Task) string {
	info := t.Info(k.Clock.Micros())
	code, _ := t.ExitCode()

	d := taskDump{
		Pid:          t.Pid,
		Name:         t.Name,
		Status:       info.Status.String(),
		ExitCode:     code,
		RunningTime:  info.Time,
		SyscallTimes: make(map[string]uint32),
	}

	for id, n := range info.SyscallTimes {
		if n == 0 {
			continue
		}

		name, ok := abi.SyscallNames[uint64(id)]
		if !ok {
			name = fmt.Sprintf("%d", id)
		}

		d.SyscallTimes[name] = n
	}

	return spew.Sdump(d)
}

func main() {
	cpuprofile := os.Getenv("CPUPROFILE")
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	pflag.Parse()

	if *fList {
		for _, app := range apps.All() {
			fmt.Printf("%-12s expects exit %d\n", app.Name, app.ExpectExit)
		}
		return
	}

	cfg := config.Default()
	if *fConfig != "" {
		var err error
		cfg, err = config.Load(*fConfig)
		if err != nil {
			log.Fatal(err)
		}
	}

	if !clog.SetLevel(cfg.LogLevel) {
		log.Fatalf("unknown log level %q", cfg.LogLevel)
	}

	if *fTrace {
		clog.EnableDebug()
	}

	k, err := kernel.NewKernel(cfg, nil)
	if err != nil {
		log.Fatal(err)
	}

	k.Invoker = &syscalls.Invoker{L: clog.L.Named("syscall")}

	var selected []apps.App

	if names := pflag.Args(); len(names) > 0 {
		for _, name := range names {
			app, ok := apps.Lookup(name)
			if !ok {
				log.Fatalf("unknown app %q", name)
			}
			selected = append(selected, app)
		}
	} else {
		selected = apps.All()
	}

	for _, app := range selected {
		if _, err := k.Spawn(app.Name, app.Program); err != nil {
			log.Fatal(err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := k.Run(ctx); err != nil {
		log.Fatal(err)
	}

	failed := 0

	for i, t := range k.Tasks().Tasks() {
		code, _ := t.ExitCode()

		status := "ok"
		if code != selected[i].ExpectExit {
			status = "FAIL"
			failed++
		}

		fmt.Printf("[%s] %s (pid %d) exited with %d\n", status, t.Name, t.Pid, code)

		if *fDump {
			fmt.Print(dump(k, t))
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
