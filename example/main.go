package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shaovie/goalarm"
)

func hello(arg any) {
	fmt.Println("alarm fired:", arg, time.Now().Format("15:04:05.000"))
}

func main() {
	poller, err := goalarm.NewPoller()
	if err != nil {
		panic(err.Error())
	}
	go poller.Run()

	logger, _ := zap.NewDevelopment()
	if err = goalarm.Init(poller, goalarm.Logger(logger)); err != nil {
		panic(err.Error())
	}

	goalarm.Set(300*1000, hello, "late")
	goalarm.Set(100*1000, hello, "early")
	goalarm.Set(200*1000, hello, "doomed")

	// doomed never fires
	if n, err := goalarm.Cancel(hello, "doomed"); err == nil {
		fmt.Println("canceled", n)
	}

	time.Sleep(500 * time.Millisecond)

	goalarm.Cleanup()
	poller.Shutdown()
}
