// Package chatmd 将流式的聊天 Markdown 响应渲染为带样式的片段
//
// 响应以文本块的形式到达。每个块都会立即产生一个可显示的 RenderedOutput：
// 大部分时候是上一次完整渲染加上尚未解析的尾部文本，每累积到阈值或遇到
// 代码围栏时重新完整渲染一次。流结束时总会做一次最终的完整渲染。
//
// 核心功能：
//   - Markdown 转换为有序片段（正文 / 代码块），带样式指令
//   - 代码块语法高亮
//   - 流式会话：增量渲染、取消、非流式模式
//   - 多轮对话历史
//
// 主要 API：
//   - Render(): 同步完整渲染
//   - New().StartStream(): 启动流式会话
//   - NewConversation(): 多轮对话
//
// 示例：
//
//	// 完整渲染
//	out := chatmd.Render(markdown)
//	for _, seg := range out.Segments {
//	    switch seg.Kind {
//	    case chatmd.SegmentProse:
//	        // 展示正文
//	    case chatmd.SegmentCodeBlock:
//	        // 展示代码块
//	    }
//	}
//
//	// 流式会话
//	r := chatmd.New(
//	    chatmd.WithStreamClient(client),
//	    chatmd.WithSubscriber(func(u chatmd.Update) { draw(u.Output) }),
//	)
//	s := r.StartStream(ctx, "Explain goroutines")
//	out, err := s.Wait()
package chatmd
