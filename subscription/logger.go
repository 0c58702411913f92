package subscription

import "github.com/sirupsen/logrus"

// log 订阅模块的日志记录器
var log = logrus.WithField("module", "subscription")
