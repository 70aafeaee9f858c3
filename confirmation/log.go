package confirmation

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "confirmation")
