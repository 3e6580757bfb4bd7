package main

import (
	"io"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/dig"

	dig_container "github.com/BISHOP-X/BABCOCK-VPL/apps/api/di/dig"
	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
	appfs "github.com/BISHOP-X/BABCOCK-VPL/fs"
	"github.com/BISHOP-X/BABCOCK-VPL/storage/database"
)

type services struct {
	dig.In
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    user.Service
	CourseSvc  course.Service
	LabSvc     lab.Service
	Mailer     core.EmailService
	Logger     core.Logger
	Closers    []io.Closer `group:"closers"`
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	logger := log.New(os.Stderr, "ADMIN : ", log.LstdFlags)
	cli := &commandLine{out: os.Stdout}

	var command string
	if len(args) > 1 {
		command = args[1]
	}

	switch command {
	case "migrate":
		conf := core.NewConfig()
		if conf.Storage.Driver != core.StoragePostgres {
			logger.Printf("error: %v (storage driver is %q)", errNoDatabase, conf.Storage.Driver)
			return 1
		}
		if err := database.CreateIfNotExist(conf); err != nil {
			logger.Printf("error: %v", err)
			return 1
		}
		db, err := database.Open(conf)
		if err != nil {
			logger.Printf("error: %v", err)
			return 1
		}
		defer db.Close()
		cli.db = db

	case "adduser", "resetpassword", "exportgrades":
		var closers []io.Closer
		err := dig_container.New().Invoke(func(s services) {
			cli.validate = s.Validate
			cli.translator = s.Translator
			cli.usrSvc = s.UserSvc
			cli.crsSvc = s.CourseSvc
			cli.labSvc = s.LabSvc
			cli.mailer = s.Mailer
			closers = s.Closers
			core.ParseEmailTemplates(appfs.FS, s.Logger, false)
		})
		if err != nil {
			logger.Printf("error: %v", err)
			return 1
		}
		defer func() {
			for _, closer := range closers {
				if closer != nil {
					_ = closer.Close()
				}
			}
		}()
	}

	if err := cli.run(args); err != nil {
		if err != errHelp {
			logger.Printf("error: %s", cli.explain(err))
		}
		return 1
	}
	return 0
}
