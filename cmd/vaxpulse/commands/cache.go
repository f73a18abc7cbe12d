package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Fallback payload 캐시 관리",
}

var cacheClearURL string

func init() {
	rootCmd.AddCommand(cacheCmd)

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "공유 캐시(Redis)의 fallback payload 삭제",
		Long: `외부 source payload를 공유 캐시(Redis)에서 삭제합니다.

이 명령어는 별도 프로세스로 실행되므로 Redis 항목만 지웁니다.
실행 중인 API 서버는 자신의 in-memory 캐시가 fresh 상태인 동안
(FALLBACK_CACHE_TTL_SECONDS) 기존 payload를 계속 사용합니다.
그 이후의 fallback 요청, 그리고 새로 시작한 replica는 payload를 새로 다운로드합니다.

Example:
  go run ./cmd/vaxpulse cache clear
  go run ./cmd/vaxpulse cache clear --url https://example.org/vaccinations.csv`,
		Args: cobra.NoArgs,
		RunE: withApp(runCacheClear),
	}
	clearCmd.Flags().StringVar(&cacheClearURL, "url", "", "payload URL (default: EXTERNAL_SOURCE_URL)")
	cacheCmd.AddCommand(clearCmd)
}

func runCacheClear(ctx context.Context, a *app, args []string) error {
	url := cacheClearURL
	if url == "" {
		url = a.cfg.Source.ExternalURL
	}

	if !a.redis.Enabled() {
		PrintWarning("REDIS_ENABLED=false: payloads are cached per process only, nothing shared to clear")
		return nil
	}

	if err := a.cache.Invalidate(ctx, url); err != nil {
		PrintError("Cache clear failed")
		return err
	}

	a.log.WithField("url", url).Info("Shared payload cache cleared")
	PrintSuccess(fmt.Sprintf("Cleared shared cached payload for %s", url))
	PrintInfo(fmt.Sprintf("Running servers keep their in-memory copy for up to %s", a.cache.TTL()))
	return nil
}
