package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

// StartWatch 监听 Nacos 配置变化，变更时更新当前配置并回调 onChange(old, new)
// 未配置 Nacos 时直接返回
func StartWatch(ctx context.Context, onChange func(oldCfg, newCfg *Config)) error {
	if strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR")) == "" {
		fmt.Println("[Config] nacos not configured, watch skipped")
		return nil
	}
	client, target, err := newNacosClient()
	if err != nil {
		return err
	}

	param := vo.ConfigParam{
		DataId: target.dataID,
		Group:  target.group,
		OnChange: func(namespace, group, dataId, data string) {
			newCfg, err := decode([]byte(data), filepath.Ext(dataId))
			if err != nil {
				fmt.Printf("[Config] parse nacos change failed: error=%v\n", err)
				return
			}
			oldCfg := GetCurrent()
			SetCurrent(newCfg)
			if onChange != nil {
				onChange(oldCfg, newCfg)
			}
		},
	}
	if err := client.ListenConfig(param); err != nil {
		return fmt.Errorf("listen nacos config: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = client.CancelListenConfig(vo.ConfigParam{DataId: target.dataID, Group: target.group})
		client.CloseClient()
	}()
	return nil
}
