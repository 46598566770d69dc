package main

import (
	"log"

	"github.com/GrainArc/TraceMap/config"
	"github.com/GrainArc/TraceMap/methods"
	"github.com/GrainArc/TraceMap/models"
	"github.com/GrainArc/TraceMap/routers"
	"github.com/gin-gonic/gin"
)

func main() {
	// 初始化数据库并迁移表结构
	models.InitDB()

	// 清理上次残留的导入临时文件
	if err := methods.DeleteFiles("./TempFile"); err != nil {
		log.Printf("临时目录清理失败: %v", err)
	}

	r := gin.Default()
	r.Use(cors())
	routers.MapRouters(r)

	log.Printf("服务启动 %s", config.MainRouter)
	if err := r.Run(config.MainRouter); err != nil {
		log.Fatalf("服务启动失败: %v", err)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
