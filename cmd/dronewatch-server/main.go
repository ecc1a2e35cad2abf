// @title Dronewatch API
// @version 1.0
// @description 无人机检测服务端，包含监控控制、事件查询与单帧识别接口
// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"dronewatch-server-go/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	issueToken := flag.String("issue-token", "", "print a control API token for this subject and exit")
	flag.Parse()

	opts := bootstrap.Options{ConfigPath: *configPath}

	if *issueToken != "" {
		token, err := bootstrap.IssueToken(opts, *issueToken)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "issue token failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	fmt.Printf("[%s] [INFO] [BOOT] starting dronewatch-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background(), opts); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "dronewatch-server failed: %v\n", err)
		os.Exit(1)
	}
}
