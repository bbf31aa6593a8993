// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "FaceRoll")
	viper.SetDefault("main.timeas24h", true)
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "faceroll.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 10485760)
	viper.SetDefault("main.log.rotationday", "Sunday")

	viper.SetDefault("camera.device", 0)
	viper.SetDefault("camera.width", 640)
	viper.SetDefault("camera.height", 480)
	viper.SetDefault("camera.captureinterval", 20*time.Millisecond)

	viper.SetDefault("recognition.tolerance", 0.4)
	viper.SetDefault("recognition.modeldir", "models")
	viper.SetDefault("recognition.processeverynth", 2)
	viper.SetDefault("recognition.downscale", 0.5)
	viper.SetDefault("recognition.confirm.single", 5)
	viper.SetDefault("recognition.confirm.population", 3)

	viper.SetDefault("realtime.interval", 15)

	viper.SetDefault("realtime.rollcall.openenabled", true)
	viper.SetDefault("realtime.rollcall.group", "")

	viper.SetDefault("realtime.log.enabled", false)
	viper.SetDefault("realtime.log.path", "attendance.txt")

	viper.SetDefault("realtime.mqtt.enabled", false)
	viper.SetDefault("realtime.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("realtime.mqtt.topic", "faceroll")
	viper.SetDefault("realtime.mqtt.username", "faceroll")
	viper.SetDefault("realtime.mqtt.password", "secret")

	viper.SetDefault("realtime.webhook.enabled", false)
	viper.SetDefault("realtime.webhook.urls", []string{})
	viper.SetDefault("realtime.webhook.timeout", 10*time.Second)
	viper.SetDefault("realtime.webhook.retries", 2)

	viper.SetDefault("realtime.notification.enabled", false)
	viper.SetDefault("realtime.notification.urls", []string{})

	viper.SetDefault("realtime.telemetry.enabled", false)
	viper.SetDefault("realtime.telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.basicauth.enabled", false)
	viper.SetDefault("webserver.basicauth.username", "operator")
	viper.SetDefault("webserver.basicauth.password", "")

	viper.SetDefault("webserver.log.enabled", false)
	viper.SetDefault("webserver.log.path", "webui.log")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "faceroll.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "faceroll")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "faceroll")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
